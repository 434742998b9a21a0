package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type Format string

const (
	Gzip    Format = "gzip"
	Tar     Format = "tar"
	TarGzip Format = "tar.gz"
	Zip     Format = "zip"
)

var ErrUnknownFormat = errors.New("unknown archive format")

// Known extensions, longest first so that "tar.gz" wins over "gz".
var extensions = []string{"tar.gz", "gz", "tar", "zip"}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gz", "gzip":
		return Gzip, nil
	case "tar":
		return Tar, nil
	case "tar.gz", "tgz", "tar-gzip":
		return TarGzip, nil
	case "zip":
		return Zip, nil
	}

	return "", errors.Wrapf(ErrUnknownFormat, "%q", s)
}

func (f Format) Extension() string {
	switch f {
	case Tar:
		return "tar"
	case TarGzip:
		return "tar.gz"
	case Zip:
		return "zip"
	default:
		return "gz"
	}
}

// SplitExtension strips a known archive extension from name. The returned
// extension is empty when name carries none.
func SplitExtension(name string) (string, string) {
	for _, ext := range extensions {
		if strings.HasSuffix(name, "."+ext) {
			return strings.TrimSuffix(name, "."+ext), ext
		}
	}

	return name, ""
}

// Compress writes src into src.<ext> and returns the archive path. The archive
// is written to a temp file next to src and renamed into place, so a crash
// never leaves a half-written archive under the final name. src is left as is.
func Compress(src string, format Format) (string, error) {
	dst := src + "." + format.Extension()

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(src), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return "", err
	}

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp.Name())
		}
	}()

	switch format {
	case Tar:
		err = writeTar(tmp, in, info)
	case TarGzip:
		err = writeTarGzip(tmp, in, info)
	case Zip:
		err = writeZip(tmp, in, info)
	default:
		err = writeGzip(tmp, in, info)
	}
	if err != nil {
		tmp.Close()
		return "", errors.Wrapf(err, "unable to write %s archive", format)
	}

	err = tmp.Sync()
	if err != nil {
		tmp.Close()
		return "", err
	}

	err = tmp.Close()
	if err != nil {
		return "", err
	}

	err = os.Chmod(tmp.Name(), info.Mode().Perm())
	if err != nil {
		return "", err
	}

	err = os.Rename(tmp.Name(), dst)
	if err != nil {
		return "", err
	}
	committed = true

	return dst, nil
}

func writeGzip(w io.Writer, in io.Reader, info os.FileInfo) error {
	gw := gzip.NewWriter(w)
	gw.Name = info.Name()
	gw.ModTime = info.ModTime()

	_, err := io.Copy(gw, in)
	if err != nil {
		return err
	}

	return gw.Close()
}

func writeTar(w io.Writer, in io.Reader, info os.FileInfo) error {
	tw := tar.NewWriter(w)

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}

	err = tw.WriteHeader(hdr)
	if err != nil {
		return err
	}

	_, err = io.Copy(tw, in)
	if err != nil {
		return err
	}

	return tw.Close()
}

func writeTarGzip(w io.Writer, in io.Reader, info os.FileInfo) error {
	gw := gzip.NewWriter(w)

	err := writeTar(gw, in, info)
	if err != nil {
		return err
	}

	return gw.Close()
}

func writeZip(w io.Writer, in io.Reader, info os.FileInfo) error {
	zw := zip.NewWriter(w)

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Method = zip.Deflate

	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	_, err = io.Copy(fw, in)
	if err != nil {
		return err
	}

	return zw.Close()
}
