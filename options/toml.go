package options

import "github.com/BurntSushi/toml"

// LoadFile decodes an Options record from a TOML file — for hosts that
// keep per-device settings out of code, the same way caddyserver/caddy
// loads its own static configuration with this library. The decoded value
// is passed through Valid() before being returned.
func LoadFile(path string) (Options, error) {
	var o Options
	if _, err := toml.DecodeFile(path, &o); err != nil {
		return Options{}, err
	}
	if err := o.Valid(); err != nil {
		return Options{}, err
	}
	return o, nil
}
