package dropbox

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// memoryDropbox serves an in-memory SFTP filesystem over a pipe.
func memoryDropbox(t *testing.T) (*Dropbox, *sftp.Client) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	server := sftp.NewRequestServer(serverConn, sftp.InMemHandler())
	go server.Serve()
	t.Cleanup(func() { server.Close() })

	client, err := sftp.NewClientPipe(clientConn, clientConn)
	require.NoError(t, err)
	require.NoError(t, client.Mkdir(Directory))
	return NewWithClient(log.New(io.Discard), client), client
}

func TestSendFile(t *testing.T) {
	d, client := memoryDropbox(t)

	require.NoError(t, d.SendFile("dlibsapg.1002.20211001000000", []byte("B20211001...\n")))

	f, err := client.Open("dropbox/dlibsapg.1002.20211001000000")
	require.NoError(t, err)
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "B20211001...\n", string(content))

	require.NoError(t, d.Close())
}

func TestSignerRestrictsRSAAlgorithms(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	signer, err := Signer(string(pemKey))
	require.NoError(t, err)
	multi, ok := signer.(ssh.MultiAlgorithmSigner)
	require.True(t, ok)
	assert.Equal(t, []string{ssh.KeyAlgoRSA}, multi.Algorithms())
}

func TestSignerOtherKeyTypes(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	signer, err := Signer(string(pem.EncodeToMemory(block)))
	require.NoError(t, err)
	assert.Equal(t, ssh.KeyAlgoED25519, signer.PublicKey().Type())

	_, err = Signer("not a key")
	assert.ErrorContains(t, err, "failed to parse private key")
}
