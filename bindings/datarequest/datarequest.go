// Package datarequest contains Go bindings for the DataRequest registry contract.
package datarequest

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DataRequestABI is the input ABI used to generate the binding from.
const DataRequestABI = `[
	{"inputs":[{"internalType":"uint256","name":"","type":"uint256"}],"name":"requests","outputs":[{"internalType":"uint256","name":"id","type":"uint256"},{"internalType":"address","name":"requester","type":"address"},{"internalType":"address","name":"user","type":"address"},{"internalType":"enum DataRequestContract.RequestStatus","name":"status","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"requester","type":"address"}],"name":"getRequestsByRequester","outputs":[{"internalType":"uint256[]","name":"","type":"uint256[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"getDetailedUserRequests","outputs":[{"components":[{"internalType":"uint256","name":"id","type":"uint256"},{"internalType":"address","name":"requester","type":"address"},{"internalType":"address","name":"user","type":"address"},{"internalType":"string[]","name":"fields","type":"string[]"},{"internalType":"enum DataRequestContract.RequestStatus","name":"status","type":"uint8"}],"internalType":"struct DataRequestContract.Request[]","name":"","type":"tuple[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"user","type":"address"},{"internalType":"string[]","name":"fields","type":"string[]"}],"name":"createRequest","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"requestId","type":"uint256"}],"name":"approveRequest","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"requestId","type":"uint256"}],"name":"rejectRequest","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"internalType":"uint256","name":"id","type":"uint256"},{"indexed":true,"internalType":"address","name":"requester","type":"address"},{"indexed":true,"internalType":"address","name":"user","type":"address"},{"indexed":false,"internalType":"string[]","name":"fields","type":"string[]"}],"name":"RequestCreated","type":"event"}
]`

// DataRequestContractRequest is an auto generated low-level Go binding around a user-defined struct.
type DataRequestContractRequest struct {
	Id        *big.Int
	Requester common.Address
	User      common.Address
	Fields    []string
	Status    uint8
}

// DataRequestSummary is the output of the public requests(uint256) getter,
// which omits the dynamic fields array.
type DataRequestSummary struct {
	Id        *big.Int
	Requester common.Address
	User      common.Address
	Status    uint8
}

// DataRequest is a Go binding around the DataRequest registry contract.
type DataRequest struct {
	DataRequestCaller
	DataRequestTransactor
	DataRequestFilterer
}

// DataRequestCaller is a read-only binding around the contract.
type DataRequestCaller struct {
	contract *bind.BoundContract
}

// DataRequestTransactor is a write-only binding around the contract.
type DataRequestTransactor struct {
	contract *bind.BoundContract
}

// DataRequestFilterer is a log filtering binding around the contract events.
type DataRequestFilterer struct {
	contract *bind.BoundContract
}

// NewDataRequest creates a new instance of DataRequest, bound to a specific deployed contract.
func NewDataRequest(address common.Address, backend bind.ContractBackend) (*DataRequest, error) {
	contract, err := bindDataRequest(address, backend, backend, backend)
	if err != nil {
		return nil, err
	}
	return &DataRequest{
		DataRequestCaller:     DataRequestCaller{contract: contract},
		DataRequestTransactor: DataRequestTransactor{contract: contract},
		DataRequestFilterer:   DataRequestFilterer{contract: contract},
	}, nil
}

func bindDataRequest(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor, filterer bind.ContractFilterer) (*bind.BoundContract, error) {
	parsed, err := abi.JSON(strings.NewReader(DataRequestABI))
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(address, parsed, caller, transactor, filterer), nil
}

// Requests is a free data retrieval call binding the contract method requests(uint256).
func (_DataRequest *DataRequestCaller) Requests(opts *bind.CallOpts, arg0 *big.Int) (DataRequestSummary, error) {
	var out []interface{}
	err := _DataRequest.contract.Call(opts, &out, "requests", arg0)

	outstruct := new(DataRequestSummary)
	if err != nil {
		return *outstruct, err
	}
	if len(out) != 4 {
		return *outstruct, errors.New("unexpected requests output length")
	}

	outstruct.Id = *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	outstruct.Requester = *abi.ConvertType(out[1], new(common.Address)).(*common.Address)
	outstruct.User = *abi.ConvertType(out[2], new(common.Address)).(*common.Address)
	outstruct.Status = *abi.ConvertType(out[3], new(uint8)).(*uint8)

	return *outstruct, nil
}

// GetRequestsByRequester is a free data retrieval call binding the contract method getRequestsByRequester(address).
func (_DataRequest *DataRequestCaller) GetRequestsByRequester(opts *bind.CallOpts, requester common.Address) ([]*big.Int, error) {
	var out []interface{}
	err := _DataRequest.contract.Call(opts, &out, "getRequestsByRequester", requester)
	if err != nil {
		return *new([]*big.Int), err
	}

	out0 := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	return out0, nil
}

// GetDetailedUserRequests is a free data retrieval call binding the contract method getDetailedUserRequests(address).
func (_DataRequest *DataRequestCaller) GetDetailedUserRequests(opts *bind.CallOpts, user common.Address) ([]DataRequestContractRequest, error) {
	var out []interface{}
	err := _DataRequest.contract.Call(opts, &out, "getDetailedUserRequests", user)
	if err != nil {
		return *new([]DataRequestContractRequest), err
	}

	out0 := *abi.ConvertType(out[0], new([]DataRequestContractRequest)).(*[]DataRequestContractRequest)
	return out0, nil
}

// CreateRequest is a paid mutator transaction binding the contract method createRequest(address,string[]).
func (_DataRequest *DataRequestTransactor) CreateRequest(opts *bind.TransactOpts, user common.Address, fields []string) (*types.Transaction, error) {
	return _DataRequest.contract.Transact(opts, "createRequest", user, fields)
}

// ApproveRequest is a paid mutator transaction binding the contract method approveRequest(uint256).
func (_DataRequest *DataRequestTransactor) ApproveRequest(opts *bind.TransactOpts, requestId *big.Int) (*types.Transaction, error) {
	return _DataRequest.contract.Transact(opts, "approveRequest", requestId)
}

// RejectRequest is a paid mutator transaction binding the contract method rejectRequest(uint256).
func (_DataRequest *DataRequestTransactor) RejectRequest(opts *bind.TransactOpts, requestId *big.Int) (*types.Transaction, error) {
	return _DataRequest.contract.Transact(opts, "rejectRequest", requestId)
}

// DataRequestRequestCreated represents a RequestCreated event raised by the contract.
type DataRequestRequestCreated struct {
	Id        *big.Int
	Requester common.Address
	User      common.Address
	Fields    []string
	Raw       types.Log
}

// ParseRequestCreated is a log parse operation binding the contract event RequestCreated.
func (_DataRequest *DataRequestFilterer) ParseRequestCreated(log types.Log) (*DataRequestRequestCreated, error) {
	event := new(DataRequestRequestCreated)
	if err := _DataRequest.contract.UnpackLog(event, "RequestCreated", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}
