package index

import "github.com/sriinnu/ledgerflow/pkg/atomicfile"

func writeTestJSONL(path string, v interface{}) error {
	return atomicfile.AppendJSONL(path, v, nil)
}
