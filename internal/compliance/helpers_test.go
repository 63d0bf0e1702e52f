package compliance_test

import "github.com/animus-labs/animus-audit/internal/platform/objectstore"

func objectstoreDisabled() objectstore.Config {
	return objectstore.Config{}
}
