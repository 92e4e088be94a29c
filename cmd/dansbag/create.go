package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/birkland/dansbag/bag"
	"github.com/birkland/dansbag/metadata"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var createOpts = struct {
	algorithms cli.StringSlice
	info       cli.StringSlice
	metadata   string
	workers    int
}{}

var create = cli.Command{
	Name:  "create",
	Usage: "Create a bag from local files",
	Description: `Given a destination directory and a list of local files, create a bag
	with those files as payload.  Directories are copied recursively.

		dansbag create -md ./md -i "Is-Version-Of: urn:uuid:..." /tmp/bag ./data/*

	Files in the -metadata directory become the bag's metadata (dataset.xml
	and files.xml).  Manifests are written for every -algorithm given (sha1 by
	default), and bag-info.txt gets a Created element unless -info sets one`,
	ArgsUsage: "dest src...",
	Flags: []cli.Flag{
		cli.StringSliceFlag{
			Name:  "algorithm, a",
			Usage: "Manifest algorithm {md5, sha1, sha256, sha512}, repeatable",
			Value: &createOpts.algorithms,
		},
		cli.StringSliceFlag{
			Name:  "info, i",
			Usage: "bag-info.txt element 'Label: value', repeatable",
			Value: &createOpts.info,
		},
		cli.StringFlag{
			Name:        "metadata, md",
			Usage:       "Directory holding the metadata files",
			Destination: &createOpts.metadata,
		},
		cli.IntFlag{
			Name:        "workers, w",
			Usage:       "Number of files copied concurrently",
			Value:       4,
			Destination: &createOpts.workers,
		},
	},

	Action: func(c *cli.Context) error {
		return createAction(c.Args())
	},
}

func createAction(args []string) error {
	if len(args) < 2 {
		return cli.NewExitError("create needs a destination and at least one source", exitUsage)
	}

	var algs []metadata.DigestAlgorithm
	for _, a := range createOpts.algorithms {
		algs = append(algs, metadata.DigestAlgorithm(strings.ToLower(a)))
	}

	w, err := bag.Create(args[0], algs...)
	if err != nil {
		return errors.Wrapf(err, "could not create bag")
	}

	info := make(map[string][]string)
	var labels []string
	for _, i := range createOpts.info {
		parts := strings.SplitN(i, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return cli.NewExitError(fmt.Sprintf("bad bag-info element %q, expected 'Label: value'", i), exitUsage)
		}
		label := strings.TrimSpace(parts[0])
		if _, ok := info[label]; !ok {
			labels = append(labels, label)
		}
		info[label] = append(info[label], strings.TrimSpace(parts[1]))
	}
	if _, ok := info["Created"]; !ok {
		w.SetInfo("Created", time.Now().Format(time.RFC3339))
	}
	for _, label := range labels {
		w.SetInfo(label, info[label]...)
	}

	sources := []source{{paths: args[1:], dest: metadata.PayloadDir}}
	if createOpts.metadata != "" {
		sources = append(sources, source{paths: contents(createOpts.metadata), dest: metadata.MetadataDir})
	}

	for _, s := range sources {
		if err := doCopy(s.paths, s.dest, w); err != nil {
			return err
		}
	}

	if err := w.Commit(time.Now()); err != nil {
		return errors.Wrapf(err, "could not commit bag")
	}

	logger.Info("bag created", zap.String("bag", w.Dir()))
	fmt.Println(w.Dir())
	return nil
}

type source struct {
	paths []string
	dest  string
}

// contents lists the entries of a directory, so that they are copied without the directory itself
func contents(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []string{dir}
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths
}

func doCopy(files []string, dest string, w *bag.Writer) error {
	workers := createOpts.workers
	if workers < 1 {
		workers = 1
	}

	q := make(chan relativeFile, workers)
	var once sync.Once
	producer := make(chan struct{})

	var g errgroup.Group
	for i := 1; i <= workers; i++ {
		g.Go(func() error {
			for f := range q {
				if err := put(w, f); err != nil {
					logger.Error("could not copy file", zap.String("path", f.relative()), zap.Error(err))
					once.Do(func() {
						close(producer)
					})
					for range q {
					}
					return err
				}
			}
			return nil
		})
	}

	err := scan(q, files, dest, producer)
	if werr := g.Wait(); werr != nil {
		return werr
	}
	return err
}

func put(w *bag.Writer, f relativeFile) error {
	content, err := os.Open(f.loc)
	if err != nil {
		return errors.Wrapf(err, "could not open file")
	}
	defer content.Close()

	return errors.Wrapf(w.Put(f.relative(), content), "could not put %s", f.relative())
}

func scan(q chan<- relativeFile, paths []string, dest string, cancel <-chan struct{}) error {
	defer close(q)

	for _, path := range paths {
		file, err := newRelativeFile(path)
		if err != nil {
			return err
		}
		file.dest = dest

		if !file.IsDir() {
			select {
			case q <- file:
				continue
			case <-cancel:
				return fmt.Errorf("file scan cancelled")
			}
		}

		err = godirwalk.Walk(file.loc, &godirwalk.Options{
			FollowSymbolicLinks: true,
			Unsorted:            true,
			Callback: func(fullpath string, de *godirwalk.Dirent) error {
				if de.IsRegular() || (de.IsSymlink() && !isDir(fullpath)) {
					select {
					case q <- relativeFile{
						base: file.base,
						dest: dest,
						loc:  fullpath,
					}:
					case <-cancel:
						return fmt.Errorf("file scan cancelled")
					}
				}
				return nil
			},
		})
		if err != nil {
			return errors.Wrapf(err, "error performing walk in %s", file.loc)
		}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

type relativeFile struct {
	os.FileInfo
	base string // Base path
	loc  string // Absolute path
	dest string // destination path in the bag
}

func newRelativeFile(path string) (relativeFile, error) {
	pt := relativeFile{}

	var err error
	pt.loc, err = filepath.Abs(path)
	if err != nil {
		return pt, errors.Wrapf(err, "could not calculate absolute path of %s", path)
	}
	pt.base = filepath.Dir(pt.loc)

	pt.FileInfo, err = os.Stat(pt.loc)
	if err != nil {
		err = errors.Wrapf(err, "could not stat file at %s (absolute of %s)", pt.loc, path)
	}
	return pt, err
}

func (p relativeFile) relative() string {
	return strings.TrimLeft(filepath.ToSlash(filepath.Join(p.dest, strings.TrimPrefix(p.loc, p.base))), "/")
}
