// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"bytes"

	"github.com/parsdao/ropasci/contract"

	"github.com/luxfi/geth/common"
)

// Module wraps a stateful precompile with the key and address it is
// registered under.
type Module struct {
	// ConfigKey is the unique name of this module in chain configuration.
	ConfigKey string

	// Address is the address where the precompile is accessible.
	Address common.Address

	// Contract is the thread-safe precompile singleton.
	Contract contract.StatefulPrecompiledContract
}

type moduleArray []Module

func (m moduleArray) Len() int      { return len(m) }
func (m moduleArray) Swap(i, j int) { m[i], m[j] = m[j], m[i] }
func (m moduleArray) Less(i, j int) bool {
	return bytes.Compare(m[i].Address.Bytes(), m[j].Address.Bytes()) < 0
}
