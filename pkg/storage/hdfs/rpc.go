package hdfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/colinmarc/hdfs/v2"
	"github.com/colinmarc/hdfs/v2/hadoopconf"
	"github.com/google/uuid"
	"github.com/marmos91/tablestore/internal/logger"
)

const (
	defaultNamenodePort = "8020"

	// closeRetries bounds how often a writer close is retried while the
	// namenode waits for block replication.
	closeRetries  = 5
	closeInterval = 200 * time.Millisecond
)

// rpcClient talks to a namenode over Hadoop RPC.
type rpcClient struct {
	client *hdfs.Client
}

// loadHadoopConf loads the Hadoop configuration named by opts and overlays
// the pass-through keys.
func loadHadoopConf(opts Options) (hadoopconf.HadoopConf, error) {
	var (
		conf hadoopconf.HadoopConf
		err  error
	)
	if opts.ConfDir != "" {
		conf, err = hadoopconf.Load(opts.ConfDir)
	} else {
		conf, err = hadoopconf.LoadFromEnvironment()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load hadoop configuration: %w", err)
	}
	if conf == nil {
		conf = hadoopconf.HadoopConf{}
	}
	for k, v := range opts.Hadoop {
		conf[k] = v
	}
	return conf, nil
}

// namenodeAddresses derives the namenode RPC addresses for u.
//
// An explicit hdfs_namenodes option wins. Otherwise a URL authority with a
// port is used as is; one without a port is looked up as an HA nameservice
// in conf and falls back to the default port. An empty authority returns
// nil so the addresses configured in conf apply.
func namenodeAddresses(u *url.URL, opts Options, conf hadoopconf.HadoopConf) []string {
	if len(opts.Namenodes) > 0 {
		return opts.Namenodes
	}

	host := u.Hostname()
	switch {
	case host == "":
		return nil
	case u.Port() != "":
		return []string{u.Host}
	}

	if ids, ok := conf["dfs.ha.namenodes."+host]; ok {
		var addrs []string
		for _, id := range strings.Split(ids, ",") {
			if addr := conf["dfs.namenode.rpc-address."+host+"."+strings.TrimSpace(id)]; addr != "" {
				addrs = append(addrs, addr)
			}
		}
		if len(addrs) > 0 {
			sort.Strings(addrs)
			return addrs
		}
	}
	return []string{net.JoinHostPort(host, defaultNamenodePort)}
}

// newRPCClient connects to the namenode serving u.
func newRPCClient(u *url.URL, opts Options, conf hadoopconf.HadoopConf) (*rpcClient, error) {
	clientOpts := hdfs.ClientOptionsFromConf(conf)
	if addrs := namenodeAddresses(u, opts, conf); len(addrs) > 0 {
		clientOpts.Addresses = addrs
	}
	if len(clientOpts.Addresses) == 0 {
		return nil, fmt.Errorf("no namenode address for %s", u.Redacted())
	}

	clientOpts.User = opts.effectiveUser()
	if clientOpts.KerberosClient != nil {
		// The configuration asks for kerberos; the client it returns has no
		// credentials yet
		krbClient, err := newKerberosClient(opts)
		if err != nil {
			return nil, fmt.Errorf("kerberos authentication is enabled: %w", err)
		}
		clientOpts.KerberosClient = krbClient
		clientOpts.User = krbClient.Credentials.UserName()
	}
	if opts.UseDatanodeHostname {
		clientOpts.UseDatanodeHostname = true
	}
	if opts.DataTransferProtection != "" {
		clientOpts.DataTransferProtection = opts.DataTransferProtection
	}

	client, err := hdfs.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to namenode %v: %w", clientOpts.Addresses, err)
	}

	logger.Info("HDFS client connected: namenodes=%v user=%s", clientOpts.Addresses, clientOpts.User)
	return &rpcClient{client: client}, nil
}

func (c *rpcClient) Stat(name string) (fs.FileInfo, error) {
	return c.client.Stat(name)
}

func (c *rpcClient) Open(name string) (File, error) {
	r, err := c.client.Open(name)
	if err != nil {
		return nil, err
	}
	return rpcFile{r}, nil
}

// rpcFile adapts hdfs.FileReader, whose Stat cannot fail, to File.
type rpcFile struct {
	*hdfs.FileReader
}

func (f rpcFile) Stat() (fs.FileInfo, error) {
	return f.FileReader.Stat(), nil
}

func (c *rpcClient) Create(name string) (io.WriteCloser, error) {
	w, err := c.client.Create(name)
	if err != nil {
		return nil, err
	}
	return &rpcWriter{FileWriter: w}, nil
}

// rpcWriter retries Close while the namenode reports that the last block
// is still replicating.
type rpcWriter struct {
	*hdfs.FileWriter
}

func (w *rpcWriter) Close() error {
	var err error
	for attempt := 0; attempt < closeRetries; attempt++ {
		err = w.FileWriter.Close()
		if !errors.Is(err, hdfs.ErrReplicating) {
			return err
		}
		time.Sleep(closeInterval)
	}
	return err
}

func (c *rpcClient) MkdirAll(name string, perm fs.FileMode) error {
	return c.client.MkdirAll(name, perm)
}

func (c *rpcClient) ReadDir(name string) ([]fs.FileInfo, error) {
	return c.client.ReadDir(name)
}

func (c *rpcClient) Remove(name string) error {
	return c.client.Remove(name)
}

func (c *rpcClient) Rename(from, to string) error {
	return c.client.Rename(from, to)
}

func (c *rpcClient) RenameNoReplace(from, to string) error {
	return renameNoReplace(c.client, from, to)
}

func (c *rpcClient) Canonicalize(name string) (string, error) {
	clean := path.Clean("/" + name)
	info, err := c.client.Stat(clean)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", clean)
	}
	return clean, nil
}

func (c *rpcClient) Close() error {
	return c.client.Close()
}

// ============================================================================
// Rename Without Replace
// ============================================================================

// lockStaleAfter is the age after which a rename lock left behind by a
// crashed writer is reclaimed.
const lockStaleAfter = 5 * time.Minute

// namenode is the subset of *hdfs.Client a no-replace rename needs.
type namenode interface {
	Stat(name string) (fs.FileInfo, error)
	CreateEmptyFile(name string) error
	Rename(from, to string) error
	Remove(name string) error
}

// lockPath names the rename lock of abs. The name is derived from abs so
// every racer targeting abs contends on the same file, and it follows the
// staging pattern so listings skip it.
func lockPath(abs string) string {
	return hiddenPath(abs, uuid.NewSHA1(uuid.NameSpaceURL, []byte(abs)))
}

// renameNoReplace moves from onto to unless to exists.
//
// The namenode has no rename that refuses to replace, so racers first
// claim a hidden lock beside to with an exclusive create, which the
// namenode serializes. The holder checks that to is absent and renames.
// Nothing is ever written at to except the renamed source.
func renameNoReplace(nn namenode, from, to string) error {
	if _, err := nn.Stat(from); err != nil {
		return err
	}

	lock := lockPath(to)
	if err := claimLock(nn, lock); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &fs.PathError{Op: "rename", Path: to, Err: fs.ErrExist}
		}
		return err
	}
	defer func() {
		if err := nn.Remove(lock); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Failed to release rename lock %s: %v", lock, err)
		}
	}()

	if _, err := nn.Stat(to); err == nil {
		return &fs.PathError{Op: "rename", Path: to, Err: fs.ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nn.Rename(from, to)
}

// claimLock creates lock exclusively. A lock older than lockStaleAfter is
// moved aside and the claim retried once.
func claimLock(nn namenode, lock string) error {
	err := nn.CreateEmptyFile(lock)
	if !errors.Is(err, fs.ErrExist) {
		return err
	}

	info, statErr := nn.Stat(lock)
	if statErr != nil || time.Since(info.ModTime()) < lockStaleAfter {
		return err
	}

	// Moving the lock aside succeeds for one reclaimer only.
	aside := stagingPath(lock)
	if renameErr := nn.Rename(lock, aside); renameErr != nil {
		return err
	}
	if moved, statErr := nn.Stat(aside); statErr == nil && time.Since(moved.ModTime()) < lockStaleAfter {
		// A fresh claim was moved; hand it back.
		if restoreErr := nn.Rename(aside, lock); restoreErr != nil {
			logger.Warn("Failed to restore rename lock %s: %v", lock, restoreErr)
		}
		return err
	}

	logger.Warn("Reclaimed stale rename lock %s", lock)
	if rmErr := nn.Remove(aside); rmErr != nil {
		logger.Warn("Failed to remove stale rename lock %s: %v", aside, rmErr)
	}
	return nn.CreateEmptyFile(lock)
}
