package capabilities

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Filesystem reads and writes whole files.
type Filesystem interface {
	Write(filename string, contents []byte) error
	Read(filename string) ([]byte, error)
	// Mkstemp creates a new empty scratch file and returns its name.
	Mkstemp() (string, error)
}

// AferoFilesystem implements Filesystem on top of an afero.Fs.
type AferoFilesystem struct {
	Fs afero.Fs
}

// NewLocalFilesystem returns a Filesystem backed by the operating system.
func NewLocalFilesystem() *AferoFilesystem {
	return &AferoFilesystem{Fs: afero.NewOsFs()}
}

func (f *AferoFilesystem) Write(filename string, contents []byte) error {
	if err := afero.WriteFile(f.Fs, filename, contents, 0o644); err != nil {
		return errors.Wrapf(err, "error writing %s", filename)
	}
	return nil
}

func (f *AferoFilesystem) Read(filename string) ([]byte, error) {
	contents, err := afero.ReadFile(f.Fs, filename)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %s", filename)
	}
	return contents, nil
}

func (f *AferoFilesystem) Mkstemp() (string, error) {
	file, err := afero.TempFile(f.Fs, "", "forge-")
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer file.Close()
	return file.Name(), nil
}

// FakeFilesystem keeps files in memory and hands out predictable scratch file names:
// temp1, temp2 and so on.
type FakeFilesystem struct {
	AferoFilesystem
	// Files read so far, in order.
	Reads     []string
	tempCount int
}

// NewFakeFilesystem returns an empty in-memory Filesystem.
func NewFakeFilesystem() *FakeFilesystem {
	return &FakeFilesystem{AferoFilesystem: AferoFilesystem{Fs: afero.NewMemMapFs()}}
}

func (f *FakeFilesystem) Read(filename string) ([]byte, error) {
	f.Reads = append(f.Reads, filename)
	return f.AferoFilesystem.Read(filename)
}

func (f *FakeFilesystem) Mkstemp() (string, error) {
	f.tempCount++
	name := fmt.Sprintf("temp%d", f.tempCount)
	if err := f.Write(name, nil); err != nil {
		return "", err
	}
	return name, nil
}

// Contents returns the contents of filename, or false if it was never written.
func (f *FakeFilesystem) Contents(filename string) (string, bool) {
	contents, err := afero.ReadFile(f.Fs, filename)
	if err != nil {
		return "", false
	}
	return string(contents), true
}
