package cli

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/boardsync/internal/engine"
)

// EnvPrefix prefixes environment overrides of CLI flags.
const EnvPrefix = "BOARDSYNC"

// DefaultRulesFile is the rule file read when --rules is not given.
const DefaultRulesFile = "boardsync.yaml"

// NewConfig returns a viper instance reading BOARDSYNC_* variables, with
// the token and monitored author taken from their GitHub names.
func NewConfig() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("token", "BOARDSYNC_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("author", "BOARDSYNC_AUTHOR", engine.AuthorToken)
	return v
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
}

// load copies resolved configuration into the options. Explicit flags win
// over the environment.
func (o *RootOptions) load() {
	v := o.Config
	o.Verbose = v.GetBool("verbose")
	o.Format = v.GetString("format")
	o.Rules = v.GetString("rules")
	o.APIURL = v.GetString("api-url")
	o.Timeout = v.GetDuration("timeout")
	o.Token = v.GetString("token")
	o.Author = v.GetString("author")
}

// lookup resolves monitored-user tokens. GITHUB_AUTHOR comes from the
// configured author; any other token is read from the environment.
func (o *RootOptions) lookup() engine.LookupFunc {
	return func(name string) (string, bool) {
		if name == engine.AuthorToken {
			return o.Author, o.Author != ""
		}
		return os.LookupEnv(name)
	}
}
