/*
Package clients provides an HTTP client for the identity agent API.

AgentClient covers the owner, requester and identity endpoints. Non-2xx
responses are returned as *APIError, which carries the status code, the
failing workflow step and the notice the agent produced.

	client := clients.NewAgentClient("http://127.0.0.1:8080")
	snapshot, err := client.OwnerRequests(ctx)
	outcome, err := client.Approve(ctx, snapshot.Requests[0].ID)
*/
package clients
