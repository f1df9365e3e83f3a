package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"twin/internal/security/redaction"
)

// Dump lists every resolved setting as key=value with secrets redacted.
func Dump(v *viper.Viper) []string {
	keys := v.AllKeys()
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		value := fmt.Sprint(v.Get(key))
		if slice, ok := v.Get(key).([]string); ok {
			value = strings.Join(slice, ",")
		}
		lines = append(lines, key+"="+redaction.Value(key, value))
	}
	return lines
}
