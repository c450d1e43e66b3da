package hdfs

import (
	"fmt"
	"os"
	"os/user"
	"strings"

	krb "github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
)

const defaultKrb5Config = "/etc/krb5.conf"

// krb5ConfigPath returns the krb5.conf to load: the option, then
// $KRB5_CONFIG, then /etc/krb5.conf.
func krb5ConfigPath(opts Options) string {
	if opts.KerberosConfig != "" {
		return opts.KerberosConfig
	}
	if p := os.Getenv("KRB5_CONFIG"); p != "" {
		return p
	}
	return defaultKrb5Config
}

// ccachePath returns the credential cache file to load: the option, then
// $KRB5CCNAME, then the MIT default /tmp/krb5cc_<uid>. Only FILE caches
// are usable.
func ccachePath(opts Options) (string, error) {
	name := opts.KerberosCCache
	if name == "" {
		name = os.Getenv("KRB5CCNAME")
	}

	if kind, p, ok := strings.Cut(name, ":"); ok {
		if kind != "FILE" {
			return "", fmt.Errorf("unusable credential cache %q: only FILE caches are supported", name)
		}
		return p, nil
	}
	if name != "" {
		return name, nil
	}

	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to locate the default credential cache: %w", err)
	}
	return "/tmp/krb5cc_" + u.Uid, nil
}

// newKerberosClient builds a Kerberos client from the ticket cache, the
// way kinit leaves it.
func newKerberosClient(opts Options) (*krb.Client, error) {
	cfgPath := krb5ConfigPath(opts)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", cfgPath, err)
	}

	cachePath, err := ccachePath(opts)
	if err != nil {
		return nil, err
	}
	ccache, err := credentials.LoadCCache(cachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential cache %s: %w", cachePath, err)
	}

	client, err := krb.NewFromCCache(ccache, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kerberos client: %w", err)
	}
	return client, nil
}
