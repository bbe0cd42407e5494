package txretry

import (
	"testing"

	"modelkit/testutil"
)

// The retry controller is a contract package: concrete managers live under
// internal and must never be reached from here.
func TestNoInternalImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "txretry declares the manager contract; drivers implement it")
}

func TestNoTransitiveInfraDependency(t *testing.T) {
	testutil.AssertNoTransitiveDependency(t, ".", testutil.InfraImportForbidden, "txretry must not pull in storage drivers")
}
