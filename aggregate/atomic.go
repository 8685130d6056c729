package aggregate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// fileWriter replaces files atomically: the content is written to a unique
// temporary file next to the target, read back and validated, then renamed
// over the target. On any failure the temporary file is removed and the
// target is left untouched.
type fileWriter struct {
	rename func(oldpath, newpath string) error
}

func newFileWriter() *fileWriter {
	return &fileWriter{rename: os.Rename}
}

// TempPath returns a unique temporary path for target.
func TempPath(target string) string {
	return fmt.Sprintf("%s.temp-%d-%s", target, os.Getpid(), uuid.NewString())
}

func (w *fileWriter) writeJSON(path string, v any, validate func([]byte) error) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return w.write(path, data, validate)
}

func (w *fileWriter) write(path string, data []byte, validate func([]byte) error) (err error) {
	tmp := TempPath(path)
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if err := writeSynced(tmp, data); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	written, err := os.ReadFile(tmp)
	if err != nil {
		return fmt.Errorf("failed to read back temporary file: %w", err)
	}
	if validate != nil {
		if err := validate(written); err != nil {
			return fmt.Errorf("temporary file failed validation: %w", err)
		}
	}

	if err := w.rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// validResultSet checks that data decodes as a result set.
func validResultSet(data []byte) error {
	_, err := decodeResultSet(data)
	return err
}

// validJSON checks that data is well-formed JSON.
func validJSON(data []byte) error {
	if !json.Valid(data) {
		return errors.New("invalid JSON")
	}
	return nil
}

// backupFile copies src to dst.
func backupFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
