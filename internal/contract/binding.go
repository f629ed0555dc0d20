// Package contract holds the CrossBorderPayment binding: the deployed address plus the bundled ABI.
package contract

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

//go:embed CrossBorderPayment.json
var artifactJSON []byte

const (
	MethodDeposit    = "deposit"
	MethodTransferTo = "transferTo"
)

type artifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
}

// ParseArtifact reads a truffle-style artifact ({"abi": [...]}) or a bare ABI array.
func ParseArtifact(b []byte) (abi.ABI, error) {
	raw := bytes.TrimSpace(b)
	if len(raw) > 0 && raw[0] == '{' {
		var a artifact
		if err := json.Unmarshal(raw, &a); err != nil {
			return abi.ABI{}, fmt.Errorf("artifact: %w", err)
		}
		if len(a.ABI) == 0 {
			return abi.ABI{}, fmt.Errorf("artifact %q has no abi", a.ContractName)
		}
		raw = a.ABI
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("abi: %w", err)
	}
	for _, m := range []string{MethodDeposit, MethodTransferTo} {
		if _, ok := parsed.Methods[m]; !ok {
			return abi.ABI{}, fmt.Errorf("abi: missing method %s", m)
		}
	}
	return parsed, nil
}

// Binding is immutable once built; both handlers share one instance.
type Binding struct {
	address common.Address
	abi     abi.ABI
}

// New binds the bundled ABI to addressHex. The address is not validated:
// an empty value binds the zero address.
func New(addressHex string) (*Binding, error) {
	parsed, err := ParseArtifact(artifactJSON)
	if err != nil {
		return nil, err
	}
	return NewWithABI(common.HexToAddress(strings.TrimSpace(addressHex)), parsed), nil
}

func NewWithABI(address common.Address, parsed abi.ABI) *Binding {
	return &Binding{address: address, abi: parsed}
}

func (b *Binding) Address() common.Address { return b.address }

// DepositCall builds the payable deposit() call carrying value.
func (b *Binding) DepositCall(from common.Address, value *big.Int) (ethereum.CallMsg, error) {
	data, err := b.abi.Pack(MethodDeposit)
	if err != nil {
		return ethereum.CallMsg{}, err
	}
	to := b.address
	return ethereum.CallMsg{From: from, To: &to, Value: new(big.Int).Set(value), Data: data}, nil
}

// TransferCall builds transferTo(recipient, amount) with no value attached.
func (b *Binding) TransferCall(from common.Address, recipient string, amount *big.Int) (ethereum.CallMsg, error) {
	recipient = strings.TrimSpace(recipient)
	if !common.IsHexAddress(recipient) {
		return ethereum.CallMsg{}, fmt.Errorf("invalid recipient address %q", recipient)
	}
	data, err := b.abi.Pack(MethodTransferTo, common.HexToAddress(recipient), amount)
	if err != nil {
		return ethereum.CallMsg{}, err
	}
	to := b.address
	return ethereum.CallMsg{From: from, To: &to, Value: big.NewInt(0), Data: data}, nil
}
