package overrides

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

const AliasFile = "version-aliases.json"

// Aliases maps a declared module version onto the canonical version whose
// correction files it shares.
type Aliases map[string]string

// LoadAliases reads dataDir/version-aliases.json. A missing file is empty.
func LoadAliases(dataDir string) (Aliases, error) {
	if dataDir == "" {
		return Aliases{}, nil
	}
	data, err := readOptional(filepath.Join(dataDir, AliasFile))
	if err != nil {
		return nil, err
	}
	aliases := Aliases{}
	if len(data) == 0 {
		return aliases, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s: invalid json", AliasFile)
	}
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		aliases[strings.TrimSpace(key.String())] = strings.TrimSpace(value.String())
		return true
	})
	return aliases, nil
}

func (a Aliases) Canonical(version string) string {
	version = strings.TrimSpace(version)
	if canonical, ok := a[version]; ok && canonical != "" {
		return canonical
	}
	return version
}
