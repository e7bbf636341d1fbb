package driver

import "sort"

// MergeEnv appends extra entries after base in sorted key order, so later
// entries override earlier ones per exec.Cmd.Env behavior. Returns nil
// when extra is empty, which lets exec.Cmd inherit the parent environment.
func MergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return nil
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	merged := make([]string, 0, len(base)+len(extra))
	merged = append(merged, base...)
	for _, k := range keys {
		merged = append(merged, k+"="+extra[k])
	}
	return merged
}
