package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	KindService = "service"
	KindFraming = "framing"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindService:
		return serviceTemplate, nil
	case KindFraming:
		return framingTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const serviceTemplate = `name = "netframe"
addr = ":17653"
admin_addr = "127.0.0.1:17654"
# bearer token for /stats, /metrics and /ws; empty leaves them open
admin_token = ""
reuse_port = false
cors_origins = ["http://localhost:3000"]

# echo | log
handler = "echo"

# framing may come from a profile file (relative to this file) and/or the
# inline keys below; inline keys win.
# framing_profile = "framing.toml"
max_frame_length = "32MiB"
length_field_offset = 0
strip_frame = true

read_timeout = "0s"
write_timeout = "15s"
poll_interval = "100ms"

[tls]
enabled = false
mutual = false
cert_file = ""
key_file = ""
ca_file = ""
`

const framingTemplate = `max_frame_length = "32MiB"
length_field_offset = 0
strip_frame = true
`
