// Command sftp-server is a standalone SFTP subsystem process, runnable
// either as an ssh -s sftp subsystem (stdin/stdout) or, with -listen, as
// a self-contained SSH server exposing only the sftp subsystem. Grounded
// on the teacher's server_standalone/main.go flag-based wrapper,
// generalized to the multi-version engine.Server and extended with the
// ambient config/SSH-listener stack the teacher's own binary omits.
package main

import (
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"os"

	"github.com/kr/fs"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"

	"github.com/ewxrjk/go-sftpserver/engine"
)

// config is the optional on-disk override for the flags below, per the
// ambient configuration-layer convention of loading a YAML file when one
// is given (the teacher ships no config file of its own; this mirrors
// how the rest of the retrieved corpus structures its yaml.v3 config
// types: plain exported fields, each with an explicit snake_case yaml
// tag).
type config struct {
	Root                string `yaml:"root"`
	ReadOnly            bool   `yaml:"read_only"`
	Workers             int    `yaml:"workers"`
	ReverseSymlinkOrder bool   `yaml:"reverse_symlink_order"`
	DisableReorder      bool   `yaml:"disable_reorder"`
	MaxMessageLength    uint32 `yaml:"max_message_length"`
}

func loadConfig(path string) (config, error) {
	var c config
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrap(err, "parsing config file")
	}
	return c, nil
}

func printTree(w *os.File, root string) {
	walker := fs.Walk(root)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			fmt.Fprintf(w, "%s: %v\n", walker.Path(), err)
			continue
		}
		fi := walker.Stat()
		if fi == nil {
			continue
		}
		fmt.Fprintf(w, "%10d  %s  %s\n", fi.Size(), fi.Mode(), walker.Path())
	}
}

func main() {
	var (
		readOnly            bool
		debugStderr         bool
		reverseSymlinkOrder bool
		disableReorder      bool
		workers             int
		maxMessageLength    uint
		root                string
		configPath          string
		listenAddr          string
		hostKeyPath         string
		printTreeFlag       bool
	)

	flag.BoolVar(&readOnly, "R", false, "read-only server")
	flag.BoolVar(&debugStderr, "e", false, "debug to stderr")
	flag.BoolVar(&reverseSymlinkOrder, "reverse-symlink-order", false,
		"use OpenSSH's reversed v3/v4 SYMLINK argument order")
	flag.BoolVar(&disableReorder, "no-reorder", false,
		"disable concurrent READ/WRITE reordering, forcing strict FIFO")
	flag.IntVar(&workers, "workers", 4, "worker pool size")
	flag.UintVar(&maxMessageLength, "max-message-length", 0, "fatal message-length threshold (0 = default)")
	flag.StringVar(&root, "root", "/", "directory the server exposes as its virtual root")
	flag.StringVar(&configPath, "config", "", "optional YAML config file overriding the flags above")
	flag.StringVar(&listenAddr, "listen", "", "if set, run as an SSH server on this address instead of stdio")
	flag.StringVar(&hostKeyPath, "host-key", "", "host private key file, required with -listen")
	flag.BoolVar(&printTreeFlag, "tree", false, "print a debug directory listing of -root before serving")
	flag.Parse()

	var debugStream io.Writer = ioutil.Discard
	if debugStderr {
		debugStream = os.Stderr
	}

	if configPath != "" {
		c, err := loadConfig(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if c.Root != "" {
			root = c.Root
		}
		readOnly = readOnly || c.ReadOnly
		disableReorder = disableReorder || c.DisableReorder
		reverseSymlinkOrder = reverseSymlinkOrder || c.ReverseSymlinkOrder
		if c.Workers > 0 {
			workers = c.Workers
		}
		if c.MaxMessageLength > 0 {
			maxMessageLength = uint(c.MaxMessageLength)
		}
	}

	if printTreeFlag {
		printTree(os.Stderr, root)
	}

	opts := buildOptions(readOnly, reverseSymlinkOrder, disableReorder, workers, uint32(maxMessageLength), debugStream)

	var err error
	if listenAddr != "" {
		err = serveSSH(listenAddr, hostKeyPath, root, opts)
	} else {
		err = serveStdio(root, opts)
	}
	if err != nil {
		fmt.Fprintf(debugStream, "sftp server completed with error: %v\n", err)
		os.Exit(1)
	}
}

func buildOptions(readOnly, reverseSymlinkOrder, disableReorder bool, workers int, maxMessageLength uint32, debugStream io.Writer) []engine.ServerOption {
	var opts []engine.ServerOption
	if readOnly {
		opts = append(opts, engine.ReadOnly())
	}
	if reverseSymlinkOrder {
		opts = append(opts, engine.WithReverseSymlinkQuirk())
	}
	if disableReorder {
		opts = append(opts, engine.WithReorderDisabled())
	}
	if workers > 0 {
		opts = append(opts, engine.WithWorkerCount(workers))
	}
	if maxMessageLength > 0 {
		opts = append(opts, engine.WithMaxMessageLength(maxMessageLength))
	}
	opts = append(opts, engine.WithDebug(debugStream))
	return opts
}

func serveStdio(root string, opts []engine.ServerOption) error {
	svr, err := engine.NewServer(os.Stdin, os.Stdout, root, opts...)
	if err != nil {
		return err
	}
	return svr.Serve()
}

// serveSSH runs a minimal SSH server whose only subsystem is sftp,
// accepting any client that offers a public key (no authorization
// decision beyond "a key was presented" is made here — operators wanting
// real access control should front this with their own authorized_keys
// check before enabling -listen).
func serveSSH(addr, hostKeyPath, root string, opts []engine.ServerOption) error {
	if hostKeyPath == "" {
		return errors.New("sftp-server: -host-key is required with -listen")
	}
	keyBytes, err := ioutil.ReadFile(hostKeyPath)
	if err != nil {
		return errors.Wrap(err, "reading host key")
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return errors.Wrap(err, "parsing host key")
	}

	sshConfig := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			return &ssh.Permissions{}, nil
		},
	}
	sshConfig.AddHostKey(signer)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "listening")
	}
	defer listener.Close()

	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		go handleConn(conn, sshConfig, root, opts)
	}
}

func handleConn(conn net.Conn, sshConfig *ssh.ServerConfig, root string, opts []engine.ServerOption) {
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, sshConfig)
	if err != nil {
		conn.Close()
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go serveSession(channel, requests, root, opts)
	}
}

func serveSession(channel ssh.Channel, requests <-chan *ssh.Request, root string, opts []engine.ServerOption) {
	defer channel.Close()
	for req := range requests {
		if req.Type != "subsystem" {
			_ = req.Reply(false, nil)
			continue
		}
		name := string(req.Payload[4:])
		if name != "sftp" {
			_ = req.Reply(false, nil)
			continue
		}
		_ = req.Reply(true, nil)

		svr, err := engine.NewServer(channel, channel, root, opts...)
		if err != nil {
			return
		}
		_ = svr.Serve()
		return
	}
}
