// Package identity contains Go bindings for the Identity registry contract.
package identity

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// IdentityABI is the input ABI used to generate the binding from.
const IdentityABI = `[
	{"inputs":[{"internalType":"address","name":"","type":"address"}],"name":"users","outputs":[{"internalType":"uint256","name":"id","type":"uint256"},{"internalType":"address","name":"wallet","type":"address"},{"internalType":"string","name":"ipfsHash","type":"string"},{"internalType":"string","name":"requesterIpfsHash","type":"string"},{"internalType":"string","name":"publicKey","type":"string"},{"internalType":"bool","name":"registered","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"getUser","outputs":[{"components":[{"internalType":"uint256","name":"id","type":"uint256"},{"internalType":"address","name":"wallet","type":"address"},{"internalType":"string","name":"ipfsHash","type":"string"},{"internalType":"string","name":"requesterIpfsHash","type":"string"},{"internalType":"string","name":"publicKey","type":"string"},{"internalType":"bool","name":"registered","type":"bool"}],"internalType":"struct Identity.User","name":"","type":"tuple"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getUserIPFSHash","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"string","name":"ipfsHash","type":"string"},{"internalType":"string","name":"publicKey","type":"string"}],"name":"registerUser","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"string","name":"ipfsHash","type":"string"}],"name":"updateIpfsHash","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"string","name":"ipfsHash","type":"string"}],"name":"setRequesterIpfsHash","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"wallet","type":"address"},{"indexed":false,"internalType":"uint256","name":"id","type":"uint256"}],"name":"UserRegistered","type":"event"}
]`

// IdentityUser is an auto generated low-level Go binding around a user-defined struct.
type IdentityUser struct {
	Id                *big.Int
	Wallet            common.Address
	IpfsHash          string
	RequesterIpfsHash string
	PublicKey         string
	Registered        bool
}

// Identity is a Go binding around the Identity registry contract.
type Identity struct {
	IdentityCaller
	IdentityTransactor
	IdentityFilterer
}

// IdentityCaller is a read-only binding around the contract.
type IdentityCaller struct {
	contract *bind.BoundContract
}

// IdentityTransactor is a write-only binding around the contract.
type IdentityTransactor struct {
	contract *bind.BoundContract
}

// IdentityFilterer is a log filtering binding around the contract events.
type IdentityFilterer struct {
	contract *bind.BoundContract
}

// NewIdentity creates a new instance of Identity, bound to a specific deployed contract.
func NewIdentity(address common.Address, backend bind.ContractBackend) (*Identity, error) {
	contract, err := bindIdentity(address, backend, backend, backend)
	if err != nil {
		return nil, err
	}
	return &Identity{
		IdentityCaller:     IdentityCaller{contract: contract},
		IdentityTransactor: IdentityTransactor{contract: contract},
		IdentityFilterer:   IdentityFilterer{contract: contract},
	}, nil
}

func bindIdentity(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor, filterer bind.ContractFilterer) (*bind.BoundContract, error) {
	parsed, err := abi.JSON(strings.NewReader(IdentityABI))
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(address, parsed, caller, transactor, filterer), nil
}

// Users is a free data retrieval call binding the contract method users(address).
func (_Identity *IdentityCaller) Users(opts *bind.CallOpts, arg0 common.Address) (IdentityUser, error) {
	var out []interface{}
	err := _Identity.contract.Call(opts, &out, "users", arg0)

	outstruct := new(IdentityUser)
	if err != nil {
		return *outstruct, err
	}
	if len(out) != 6 {
		return *outstruct, errors.New("unexpected users output length")
	}

	outstruct.Id = *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	outstruct.Wallet = *abi.ConvertType(out[1], new(common.Address)).(*common.Address)
	outstruct.IpfsHash = *abi.ConvertType(out[2], new(string)).(*string)
	outstruct.RequesterIpfsHash = *abi.ConvertType(out[3], new(string)).(*string)
	outstruct.PublicKey = *abi.ConvertType(out[4], new(string)).(*string)
	outstruct.Registered = *abi.ConvertType(out[5], new(bool)).(*bool)

	return *outstruct, nil
}

// GetUser is a free data retrieval call binding the contract method getUser(address).
func (_Identity *IdentityCaller) GetUser(opts *bind.CallOpts, user common.Address) (IdentityUser, error) {
	var out []interface{}
	err := _Identity.contract.Call(opts, &out, "getUser", user)
	if err != nil {
		return *new(IdentityUser), err
	}

	out0 := *abi.ConvertType(out[0], new(IdentityUser)).(*IdentityUser)
	return out0, nil
}

// GetUserIPFSHash is a free data retrieval call binding the contract method getUserIPFSHash().
// The contract resolves the caller from opts.From.
func (_Identity *IdentityCaller) GetUserIPFSHash(opts *bind.CallOpts) (string, error) {
	var out []interface{}
	err := _Identity.contract.Call(opts, &out, "getUserIPFSHash")
	if err != nil {
		return *new(string), err
	}

	out0 := *abi.ConvertType(out[0], new(string)).(*string)
	return out0, nil
}

// RegisterUser is a paid mutator transaction binding the contract method registerUser(string,string).
func (_Identity *IdentityTransactor) RegisterUser(opts *bind.TransactOpts, ipfsHash string, publicKey string) (*types.Transaction, error) {
	return _Identity.contract.Transact(opts, "registerUser", ipfsHash, publicKey)
}

// UpdateIpfsHash is a paid mutator transaction binding the contract method updateIpfsHash(string).
func (_Identity *IdentityTransactor) UpdateIpfsHash(opts *bind.TransactOpts, ipfsHash string) (*types.Transaction, error) {
	return _Identity.contract.Transact(opts, "updateIpfsHash", ipfsHash)
}

// SetRequesterIpfsHash is a paid mutator transaction binding the contract method setRequesterIpfsHash(string).
func (_Identity *IdentityTransactor) SetRequesterIpfsHash(opts *bind.TransactOpts, ipfsHash string) (*types.Transaction, error) {
	return _Identity.contract.Transact(opts, "setRequesterIpfsHash", ipfsHash)
}

// IdentityUserRegistered represents a UserRegistered event raised by the contract.
type IdentityUserRegistered struct {
	Wallet common.Address
	Id     *big.Int
	Raw    types.Log
}

// ParseUserRegistered is a log parse operation binding the contract event UserRegistered.
func (_Identity *IdentityFilterer) ParseUserRegistered(log types.Log) (*IdentityUserRegistered, error) {
	event := new(IdentityUserRegistered)
	if err := _Identity.contract.UnpackLog(event, "UserRegistered", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}
