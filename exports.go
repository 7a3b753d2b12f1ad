package remit

import (
	"github.com/xraph/remit/id"
	"github.com/xraph/remit/types"
)

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// ID is the primary identifier type for all Remit entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

// Re-export Money constructors
var (
	EUR        = types.EUR
	USD        = types.USD
	Zero       = types.Zero
	ParseMajor = types.ParseMajor
)
