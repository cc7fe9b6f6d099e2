package dropbox

import (
	"context"
	"fmt"
	"net"
	"path"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Directory is where the SAP dropbox expects incoming files.
const Directory = "dropbox"

// Dropbox is an authenticated SFTP session with the SAP dropbox.
type Dropbox struct {
	sftp   *sftp.Client
	ssh    *ssh.Client
	logger *log.Logger
}

// Signer parses a PEM private key. RSA keys are restricted to the legacy
// ssh-rsa signature algorithm, which is the only one the dropbox accepts.
func Signer(privateKey string) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey([]byte(privateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	if signer.PublicKey().Type() != ssh.KeyAlgoRSA {
		return signer, nil
	}
	as, ok := signer.(ssh.AlgorithmSigner)
	if !ok {
		return signer, nil
	}
	restricted, err := ssh.NewSignerWithAlgorithms(as, []string{ssh.KeyAlgoRSA})
	if err != nil {
		return nil, fmt.Errorf("failed to restrict key algorithms: %w", err)
	}
	return restricted, nil
}

// Connect authenticates to host:port as user with privateKey and opens an
// SFTP session. The host key is not verified.
func Connect(ctx context.Context, logger *log.Logger, host, port, user, privateKey string) (*Dropbox, error) {
	signer, err := Signer(privateKey)
	if err != nil {
		return nil, err
	}
	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}

	addr := net.JoinHostPort(host, port)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to authenticate to %s: %w", addr, err)
	}
	sshClient := ssh.NewClient(c, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("failed to open sftp session: %w", err)
	}
	logger.Debug("connected to dropbox", "addr", addr, "user", user)
	return &Dropbox{sftp: sftpClient, ssh: sshClient, logger: logger}, nil
}

// NewWithClient wraps an already open SFTP session.
func NewWithClient(logger *log.Logger, client *sftp.Client) *Dropbox {
	return &Dropbox{sftp: client, logger: logger}
}

// SendFile writes contents to Directory/name on the server. The directory
// must already exist.
func (d *Dropbox) SendFile(name string, contents []byte) error {
	p := path.Join(Directory, name)
	f, err := d.sftp.Create(p)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", p, err)
	}
	if _, err := f.Write(contents); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", p, err)
	}
	info, err := d.sftp.Stat(p)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", p, err)
	}
	d.logger.Info("sent file to dropbox", "path", p, "bytes", info.Size())
	return nil
}

// Close ends the SFTP session and the SSH connection.
func (d *Dropbox) Close() error {
	err := d.sftp.Close()
	if d.ssh != nil {
		if sshErr := d.ssh.Close(); err == nil {
			err = sshErr
		}
	}
	return err
}
