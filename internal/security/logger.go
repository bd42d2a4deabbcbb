package security

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sgaunet/bullets"
)

// DebugCredentials logs which credentials were resolved for an endpoint.
// Details are sanitized; the token itself is only ever printed masked.
func DebugCredentials(logger *bullets.Logger, platform string, token SecureToken, details map[string]string) {
	if logger == nil {
		return
	}

	sanitized := make(map[string]any, len(details))
	for k, v := range details {
		sanitized[k] = v
	}
	sanitized = SanitizeMap(sanitized)

	keys := make([]string, 0, len(sanitized))
	for k := range sanitized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, sanitized[k]))
	}

	logger.Debug(fmt.Sprintf("Using %s credentials %s (%s)", platform, token, strings.Join(pairs, ", ")))
}

// DebugSSHKey logs SSH key usage with a masked path.
func DebugSSHKey(logger *bullets.Logger, keyFile string) {
	if logger == nil {
		return
	}
	logger.Debug("SSH authentication configured with key: " + MaskSSHKeyPath(keyFile))
}
