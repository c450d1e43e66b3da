package hdfs

import (
	"os"
	"os/user"

	"github.com/marmos91/tablestore/pkg/storage"
)

// hadoopKeyPrefixes select the storage options forwarded verbatim into the
// Hadoop configuration of the native client.
var hadoopKeyPrefixes = []string{"fs.", "dfs.", "hadoop."}

// Options are the HDFS-specific storage options.
//
// Keys with an "fs.", "dfs." or "hadoop." prefix are not interpreted; they
// are collected into Hadoop and overlaid onto the Hadoop configuration the
// native client is built from.
type Options struct {
	// User is the HDFS user to act as
	// (default: $HADOOP_USER_NAME, then the OS user)
	User string `mapstructure:"hdfs_user"`

	// Namenodes overrides the namenode addresses derived from the URL and
	// the Hadoop configuration (comma-separated host:port list)
	Namenodes []string `mapstructure:"hdfs_namenodes"`

	// UseDatanodeHostname connects to datanodes by hostname instead of IP
	UseDatanodeHostname bool `mapstructure:"hdfs_use_datanode_hostname"`

	// DataTransferProtection is the SASL protection level for datanode
	// connections ("authentication", "integrity" or "privacy")
	DataTransferProtection string `mapstructure:"hdfs_data_transfer_protection"`

	// ConfDir is a directory holding core-site.xml and hdfs-site.xml
	// (default: $HADOOP_CONF_DIR, then $HADOOP_HOME/conf)
	ConfDir string `mapstructure:"hadoop_conf_dir"`

	// FuseMount serves the namespace through a local mount point instead of
	// namenode RPC
	FuseMount string `mapstructure:"hdfs_fuse_mount"`

	// KerberosCCache is the Kerberos credential cache used when
	// hadoop.security.authentication is kerberos
	// (default: $KRB5CCNAME, then /tmp/krb5cc_<uid>)
	KerberosCCache string `mapstructure:"hdfs_kerberos_ccache"`

	// KerberosConfig is the krb5.conf to load
	// (default: $KRB5_CONFIG, then /etc/krb5.conf)
	KerberosConfig string `mapstructure:"hdfs_kerberos_config"`

	// CreateRoot creates a missing root directory instead of failing
	CreateRoot bool `mapstructure:"hdfs_create_root"`

	// Hadoop holds the pass-through Hadoop configuration keys
	Hadoop map[string]string `mapstructure:"-"`
}

// ParseOptions decodes the HDFS options out of opts.
func ParseOptions(opts storage.StorageOptions) (Options, error) {
	var o Options
	if err := opts.Decode(&o); err != nil {
		return Options{}, err
	}
	o.Hadoop = opts.WithPrefix(hadoopKeyPrefixes...)
	return o, nil
}

// effectiveUser returns the user to act as.
func (o Options) effectiveUser() string {
	if o.User != "" {
		return o.User
	}
	if name := os.Getenv("HADOOP_USER_NAME"); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}
