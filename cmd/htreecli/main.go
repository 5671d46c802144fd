// Command htreecli is a small operator tool for poking at a
// file-backed htree index: put, get, remove and list string
// associations, and defragment a store into a fresh file.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/go-homedir"
	"github.com/op/go-logging"

	"github.com/ab409/htree/internal/htree"
	"github.com/ab409/htree/internal/store"
)

var log = logging.MustGetLogger("htreecli")

var stdoutLogFormat = logging.MustStringFormatter(
	`%{color:reset}%{color}%{time:15:04:05.000} [%{level}] %{message}`,
)

type options struct {
	DB string `short:"d" long:"db" description:"path to the index file" default:"~/.htree/index.db"`
}

var opts options

type putCmd struct {
	Key   string `positional-arg-name:"key" required:"true"`
	Value string `positional-arg-name:"value" required:"true"`
}

type getCmd struct {
	Key string `positional-arg-name:"key" required:"true"`
}

type removeCmd struct {
	Key string `positional-arg-name:"key" required:"true"`
}

type listCmd struct{}

type defragCmd struct {
	Dest string `positional-arg-name:"dest" required:"true" description:"path of the fresh, defragmented store"`
}

var parser = flags.NewParser(&opts, flags.Default)

func main() {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatter := logging.NewBackendFormatter(backend, stdoutLogFormat)
	logging.SetBackend(formatter)

	parser.AddCommand("put", "insert or replace a key/value pair", "", &putCmd{})
	parser.AddCommand("get", "look up a key", "", &getCmd{})
	parser.AddCommand("remove", "delete a key", "", &removeCmd{})
	parser.AddCommand("list", "list every key/value pair", "", &listCmd{})
	parser.AddCommand("defrag", "copy the store into a fresh, compacted file", "", &defragCmd{})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func dbPath() (string, error) {
	return homedir.Expand(opts.DB)
}

// openTree opens the index at opts.DB, creating it (and its root
// directory) if the file does not already exist.
func openTree() (*htree.Tree[string, string], *store.FileStore, error) {
	path, err := dbPath()
	if err != nil {
		return nil, nil, err
	}

	fresh := true
	if _, err := os.Stat(path); err == nil {
		fresh = false
	}

	fs, err := store.Open(path)
	if err != nil {
		return nil, nil, err
	}

	codec := htree.GobCodec[string, string]{}
	if fresh {
		tr, err := htree.New[string, string](fs, codec)
		if err != nil {
			fs.Close()
			return nil, nil, err
		}
		log.Debugf("htreecli: created new index at %s (root %d)", path, tr.RootID())
		return tr, fs, nil
	}

	tr, err := htree.Open[string, string](fs, codec, rootRecordID)
	if err != nil {
		fs.Close()
		return nil, nil, err
	}
	return tr, fs, nil
}

// rootRecordID is the record id of a tree's root directory when that
// tree is the only thing stored in its FileStore: the very first
// record any fresh store allocates is id 1, and htreecli never stores
// anything else alongside the tree.
const rootRecordID = store.RecordID(1)

func (c *putCmd) Execute(args []string) error {
	tr, fs, err := openTree()
	if err != nil {
		return err
	}
	defer fs.Close()

	prior, had, err := tr.Put(c.Key, c.Value)
	if err != nil {
		return err
	}
	if had {
		fmt.Printf("replaced %q (was %q)\n", c.Key, prior)
	} else {
		fmt.Printf("inserted %q\n", c.Key)
	}
	return nil
}

func (c *getCmd) Execute(args []string) error {
	tr, fs, err := openTree()
	if err != nil {
		return err
	}
	defer fs.Close()

	v, ok, err := tr.Get(c.Key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no such key: %q", c.Key)
	}
	fmt.Println(v)
	return nil
}

func (c *removeCmd) Execute(args []string) error {
	tr, fs, err := openTree()
	if err != nil {
		return err
	}
	defer fs.Close()

	_, had, err := tr.Remove(c.Key)
	if err != nil {
		return err
	}
	if !had {
		return fmt.Errorf("no such key: %q", c.Key)
	}
	fmt.Printf("removed %q\n", c.Key)
	return nil
}

func (c *listCmd) Execute(args []string) error {
	tr, fs, err := openTree()
	if err != nil {
		return err
	}
	defer fs.Close()

	keys, err := tr.Keys()
	if err != nil {
		return err
	}
	vals, err := tr.Values()
	if err != nil {
		return err
	}
	for {
		k, err := keys.Next()
		if err != nil {
			if errors.Is(err, htree.ErrExhausted) {
				return nil
			}
			return err
		}
		v, err := vals.Next()
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", k, v)
	}
}

func (c *defragCmd) Execute(args []string) error {
	tr, fs, err := openTree()
	if err != nil {
		return err
	}
	defer fs.Close()

	dest, err := homedir.Expand(c.Dest)
	if err != nil {
		return err
	}
	dst, err := store.Open(dest)
	if err != nil {
		return err
	}
	defer dst.Close()

	newRoot, err := tr.Defrag(dst)
	if err != nil {
		return err
	}
	log.Debugf("htreecli: defragmented to %s (root %d)", dest, newRoot)
	fmt.Printf("defragmented into %s\n", dest)
	return nil
}
