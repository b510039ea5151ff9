package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/restbackup/chlorocrypt/internal/client"
	"github.com/restbackup/chlorocrypt/internal/config"
	"github.com/restbackup/chlorocrypt/internal/crypto"
	"github.com/restbackup/chlorocrypt/internal/metrics"
	"github.com/restbackup/chlorocrypt/internal/stream"
)

var (
	version = "1.0"
	commit  = "unknown"
)

func main() {
	app := cli.NewApp()
	app.Name = "chlorocrypt"
	app.Usage = "encrypted backups over the RestBackup API"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "path to YAML config file",
			EnvVar: "CONFIG_PATH",
		},
		cli.StringFlag{
			Name:  "access-url, u",
			Usage: "backup API access url, overrides config",
		},
		cli.StringFlag{
			Name:  "passphrase-file, p",
			Usage: "file holding the encryption passphrase, overrides config",
		},
		cli.BoolFlag{
			Name:  "force, f",
			Usage: "allow overwrite of local files",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "put",
			Usage:     "upload LOCAL_FILE, storing it as REMOTE_FILE",
			ArgsUsage: "LOCAL_FILE [REMOTE_FILE]",
			Action:    cmdPut,
		},
		{
			Name:      "encrypt-and-put",
			Usage:     "encrypt LOCAL_FILE and upload it as REMOTE_FILE",
			ArgsUsage: "LOCAL_FILE [REMOTE_FILE]",
			Action:    cmdEncryptAndPut,
		},
		{
			Name:      "get",
			Usage:     "download REMOTE_FILE and save it as LOCAL_FILE",
			ArgsUsage: "REMOTE_FILE [LOCAL_FILE]",
			Action:    cmdGet,
		},
		{
			Name:      "get-and-decrypt",
			Usage:     "download REMOTE_FILE, decrypt it and save it as LOCAL_FILE",
			ArgsUsage: "REMOTE_FILE [LOCAL_FILE]",
			Action:    cmdGetAndDecrypt,
		},
		{
			Name:   "list",
			Usage:  "list uploaded files",
			Action: cmdList,
		},
		{
			Name:      "encrypt",
			Usage:     "encrypt IN_FILE locally, writing OUT_FILE",
			ArgsUsage: "IN_FILE OUT_FILE",
			Action:    cmdEncrypt,
		},
		{
			Name:      "decrypt",
			Usage:     "decrypt IN_FILE locally, writing OUT_FILE",
			ArgsUsage: "IN_FILE OUT_FILE",
			Action:    cmdDecrypt,
		},
		{
			Name:    "make-random-passphrase",
			Aliases: []string{"gen-passphrase"},
			Usage:   "generate a random 35-bit passphrase",
			Action:  cmdMakeRandomPassphrase,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

// env bundles everything a command needs.
type env struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func setup(c *cli.Context) (*env, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	cfg, err := config.LoadConfig(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}
	if u := c.GlobalString("access-url"); u != "" {
		cfg.AccessURL = u
	}
	if p := c.GlobalString("passphrase-file"); p != "" {
		cfg.Passphrase = config.PassphraseConfig{File: p}
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.WithFields(logrus.Fields{
		"version": version,
		"commit":  commit,
	}).Debug("Starting chlorocrypt")

	return &env{cfg: cfg, logger: logger}, nil
}

func (e *env) newClient() (*client.Client, error) {
	accessURL, err := e.cfg.ResolveAccessURL()
	if err != nil {
		return nil, err
	}
	return client.New(accessURL,
		client.WithUserAgent(e.cfg.UserAgent),
		client.WithLogger(e.logger),
		client.WithMetrics(metrics.NewMetrics()))
}

// passphrase resolves the configured passphrase source, falling back to an
// interactive prompt when neither a literal value nor a readable file is
// configured.
func (e *env) passphrase() ([]byte, error) {
	p, err := e.cfg.Passphrase.Resolve()
	if err == nil {
		return p, nil
	}
	fmt.Fprint(os.Stderr, "Passphrase: ")
	line, rerr := bufio.NewReader(os.Stdin).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if rerr != nil {
			return nil, err
		}
		return nil, errors.New("empty passphrase")
	}
	return []byte(line), nil
}

func cmdPut(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	local, remote, err := uploadNames(c)
	if err != nil {
		return err
	}
	api, err := e.newClient()
	if err != nil {
		return err
	}
	f, err := stream.OpenFile(local)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = api.Put(context.Background(), remote, f)
	return friendly(err)
}

func cmdEncryptAndPut(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	local, remote, err := uploadNames(c)
	if err != nil {
		return err
	}
	passphrase, err := e.passphrase()
	if err != nil {
		return err
	}
	api, err := e.newClient()
	if err != nil {
		return err
	}
	f, err := stream.OpenFile(local)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = api.PutEncrypted(context.Background(), passphrase, remote, f)
	return friendly(err)
}

func cmdGet(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	remote, local, err := downloadNames(c)
	if err != nil {
		return err
	}
	api, err := e.newClient()
	if err != nil {
		return err
	}
	src, err := api.Get(context.Background(), remote)
	if err != nil {
		return friendly(err)
	}
	defer src.Close()
	return saveTo(local, src, c.GlobalBool("force"))
}

func cmdGetAndDecrypt(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	remote, local, err := downloadNames(c)
	if err != nil {
		return err
	}
	passphrase, err := e.passphrase()
	if err != nil {
		return err
	}
	api, err := e.newClient()
	if err != nil {
		return err
	}
	src, err := api.GetEncrypted(context.Background(), passphrase, remote)
	if err != nil {
		return friendly(err)
	}
	defer src.Close()
	return saveTo(local, src, c.GlobalBool("force"))
}

func cmdList(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	api, err := e.newClient()
	if err != nil {
		return err
	}
	files, err := api.List(context.Background())
	if err != nil {
		return friendly(err)
	}
	for _, f := range files {
		created := time.Unix(f.CreateTime, 0).UTC().Format("2006-01-02 15:04:05")
		fmt.Printf("%s %12d %s\n", created, f.Size, f.Name)
	}
	return nil
}

func cmdEncrypt(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	if c.NArg() != 2 {
		return errors.New("encrypt needs IN_FILE and OUT_FILE arguments")
	}
	passphrase, err := e.passphrase()
	if err != nil {
		return err
	}
	src, err := openIn(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer src.Close()
	enc, err := crypto.NewEncryptingReader(src, passphrase, crypto.WithRounds(e.cfg.Rounds))
	if err != nil {
		return friendly(err)
	}
	defer enc.Close()
	return saveTo(c.Args().Get(1), enc, c.GlobalBool("force"))
}

func cmdDecrypt(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	if c.NArg() != 2 {
		return errors.New("decrypt needs IN_FILE and OUT_FILE arguments")
	}
	passphrase, err := e.passphrase()
	if err != nil {
		return err
	}
	src, err := openIn(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer src.Close()
	dec, err := crypto.NewDecryptingReader(src, passphrase, crypto.WithRounds(e.cfg.Rounds))
	if err != nil {
		return friendly(err)
	}
	defer dec.Close()
	return saveTo(c.Args().Get(1), dec, c.GlobalBool("force"))
}

// passphrase word shapes: a marks a vowel, b a consonant cluster. Each word
// drawn this way carries about 35 bits of entropy across the three words.
var passphraseTemplates = []string{
	"aababbab", "aabbabab", "aabbabba", "abaabbab", "abababab",
	"abababba", "ababbaab", "ababbaba", "abbaabab", "abbaabba",
	"abbabaab", "abbababa", "abbabbaa", "baababab", "baababba",
	"baabbaab", "baabbaba", "babaabab", "babaabba", "bababaab",
	"babababa", "bababbaa", "babbaaba", "babbabaa",
}

var passphraseAlphabet = map[byte][]string{
	'a': {"a", "e", "i", "o", "u"},
	'b': {"b", "c", "d", "f", "g", "h", "j", "k", "l", "m", "n", "p", "r",
		"s", "v", "w", "x", "y", "z", "ch", "ph", "st"},
}

func cmdMakeRandomPassphrase(c *cli.Context) error {
	words := make([]string, 3)
	for i := range words {
		template, err := randomChoice(passphraseTemplates)
		if err != nil {
			return err
		}
		var b strings.Builder
		for j := 0; j < len(template); j++ {
			letter, err := randomChoice(passphraseAlphabet[template[j]])
			if err != nil {
				return err
			}
			b.WriteString(letter)
		}
		digit, err := randomChoice([]string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"})
		if err != nil {
			return err
		}
		word := b.String()
		words[i] = strings.ToUpper(word[:1]) + word[1:] + digit
	}
	fmt.Println(strings.Join(words, " "))
	return nil
}

func randomChoice(items []string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(items))))
	if err != nil {
		return "", err
	}
	return items[n.Int64()], nil
}

// uploadNames returns the local path and the remote name, defaulting the
// remote name to the local base name.
func uploadNames(c *cli.Context) (local, remote string, err error) {
	switch c.NArg() {
	case 1:
		local = c.Args().Get(0)
		remote = filepath.Base(local)
	case 2:
		local = c.Args().Get(0)
		remote = c.Args().Get(1)
	default:
		return "", "", errors.New("expected LOCAL_FILE [REMOTE_FILE] arguments")
	}
	if !strings.HasPrefix(remote, "/") {
		remote = "/" + remote
	}
	return local, remote, nil
}

// downloadNames returns the remote name and the local path, defaulting the
// local path to the remote base name.
func downloadNames(c *cli.Context) (remote, local string, err error) {
	switch c.NArg() {
	case 1:
		remote = c.Args().Get(0)
		local = remote[strings.LastIndex(remote, "/")+1:]
	case 2:
		remote = c.Args().Get(0)
		local = c.Args().Get(1)
	default:
		return "", "", errors.New("expected REMOTE_FILE [LOCAL_FILE] arguments")
	}
	if !strings.HasPrefix(remote, "/") {
		remote = "/" + remote
	}
	return remote, local, nil
}

// openIn opens path for reading, treating "-" as standard input. Stdin is
// read fully up front because upload retries need a rewindable stream.
func openIn(path string) (stream.RewindableSizedReader, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		return stream.NewBytesReader(data), nil
	}
	return stream.OpenFile(path)
}

// saveTo writes src to path, refusing to overwrite an existing file unless
// force is set. "-" writes to standard output.
func saveTo(path string, src io.Reader, force bool) error {
	if path == "-" {
		_, err := io.Copy(os.Stdout, src)
		return friendly(err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	out, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("refusing to overwrite %q, pass -f to allow", path)
		}
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(path)
		return friendly(err)
	}
	return out.Close()
}

// friendly rewraps pipeline and API errors with messages that say what the
// user can do about them.
func friendly(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, crypto.ErrBadMac):
		return fmt.Errorf("wrong passphrase, or the file is damaged: %w", err)
	case errors.Is(err, crypto.ErrDataDamaged):
		return fmt.Errorf("the file is damaged: %w", err)
	case errors.Is(err, crypto.ErrDataTruncated):
		return fmt.Errorf("the file is incomplete: %w", err)
	case errors.Is(err, client.ErrMethodNotAllowed):
		return fmt.Errorf("cannot overwrite an existing remote file: %w", err)
	case errors.Is(err, client.ErrNotAuthorized):
		return fmt.Errorf("the access url was rejected, check your credentials: %w", err)
	default:
		return err
	}
}
