package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Declaration surface (TOML decl files).
	DeclInfo           Code = 1000
	DeclBadSyntax      Code = 1001
	DeclUnknownType    Code = 1002
	DeclDuplicateClass Code = 1003
	DeclBadBase        Code = 1004
	DeclBadField       Code = 1005
	DeclBadAccess      Code = 1006
	DeclBadInitializer Code = 1007
	DeclDelegatingMix  Code = 1008
	DeclCatchAllOrder  Code = 1009
	DeclUnionWithBase  Code = 1010
	DeclBadBitWidth    Code = 1011

	// Layout.
	LayoutInfo           Code = 3000
	LayoutRecursiveClass Code = 3001
	LayoutOverflow       Code = 3002

	// ABI lowering.
	LowerInfo          Code = 4000
	LowerUnimplemented Code = 4001
	LowerNoHierarchy   Code = 4002

	// Driver.
	DriverInfo      Code = 5000
	DriverBadInput  Code = 5001
	DriverCacheSkew Code = 5002
)

func (c Code) String() string {
	return fmt.Sprintf("KLN%04d", uint16(c))
}
