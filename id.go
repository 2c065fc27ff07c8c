package dunning

import "github.com/xraph/dunning/id"

// ID is the primary identifier type for all Dunning entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
