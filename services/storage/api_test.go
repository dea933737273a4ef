package storage_test

import (
	"io/ioutil"
	"net/http"
	"path/filepath"
	"testing"

	client "github.com/streamwatch/streamwatch/client/v1"
	"github.com/streamwatch/streamwatch/services/httpd/httpdtest"
	"github.com/streamwatch/streamwatch/services/storage"
	"github.com/streamwatch/streamwatch/services/storage/storagetest"
)

type countingRebuilder struct {
	rebuilds int
	err      error
}

func (c *countingRebuilder) Rebuild() error {
	if c.err != nil {
		return c.err
	}
	c.rebuilds++
	return nil
}

func TestAPIServer_StorageEndpoints(t *testing.T) {
	ts := httpdtest.NewServer(false)
	defer ts.Close()

	conf := storage.NewConfig()
	conf.BoltDBPath = filepath.Join(t.TempDir(), "streamwatch.db")
	srv := storage.NewService(conf, storagetest.Diagnostic{})
	srv.HTTPDService = ts
	if err := srv.Open(); err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	rb := &countingRebuilder{}
	srv.Register("stream_store", rb)

	cli, err := client.New(client.Config{URL: ts.Server.URL})
	if err != nil {
		t.Fatal(err)
	}

	list, err := cli.ListStorage()
	if err != nil {
		t.Fatal(err)
	}
	if got, exp := len(list.Storage), 1; got != exp {
		t.Fatalf("unexpected storage count: got %d exp %d", got, exp)
	}
	if got, exp := list.Storage[0].Name, "stream_store"; got != exp {
		t.Errorf("unexpected storage name: got %q exp %q", got, exp)
	}
	if got, exp := list.Storage[0].Link, cli.StorageLink("stream_store"); got != exp {
		t.Errorf("unexpected storage link: got %v exp %v", got, exp)
	}

	if err := cli.DoStorageAction(list.Storage[0].Link, client.StorageActionOptions{
		Action: client.StorageRebuild,
	}); err != nil {
		t.Fatal(err)
	}
	if got, exp := rb.rebuilds, 1; got != exp {
		t.Errorf("unexpected rebuild count: got %d exp %d", got, exp)
	}

	err = cli.DoStorageAction(cli.StorageLink("nope"), client.StorageActionOptions{
		Action: client.StorageRebuild,
	})
	if err == nil {
		t.Fatal("expected error for unknown storage")
	}
	if got, exp := err.Error(), `unknown storage "nope"`; got != exp {
		t.Errorf("unexpected error message: got %q exp %q", got, exp)
	}
}

func TestAPIServer_Backup(t *testing.T) {
	ts := httpdtest.NewServer(false)
	defer ts.Close()

	conf := storage.NewConfig()
	conf.BoltDBPath = filepath.Join(t.TempDir(), "streamwatch.db")
	srv := storage.NewService(conf, storagetest.Diagnostic{})
	srv.HTTPDService = ts
	if err := srv.Open(); err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	// Write something so the backup has content beyond the empty file.
	store := srv.Store("backup_test")
	if err := store.Update(func(tx storage.Tx) error {
		return tx.Put("key", []byte("value"))
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.Server.URL + "/streamwatch/v1/storage/backup")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if got, exp := resp.StatusCode, http.StatusOK; got != exp {
		t.Fatalf("unexpected backup status: got %d exp %d", got, exp)
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(body) == 0 {
		t.Fatal("expected backup data")
	}
	if got, exp := int64(len(body)), resp.ContentLength; got != exp {
		t.Errorf("backup truncated: got %d bytes exp %d", got, exp)
	}
}
