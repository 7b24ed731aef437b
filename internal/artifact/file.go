package artifact

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"cintfix/internal/cfa"
)

// 元数据目录中的文件名
const (
	SMT2File      = "constraint.smt2"
	Name2LocFile  = "name2loc.json"
	Loc2GuideFile = "loc2guide.json"
	CacheFile     = "analysis.msgpack"
)

// Dir 一个翻译单元的元数据目录
type Dir string

func (d Dir) Path(name string) string { return filepath.Join(string(d), name) }

// WriteAtomic 先写临时文件再改名，失败时不会留下半个文件
func WriteAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
				log.Printf("【产物】删除临时文件失败 %s: %v", tmp, rmErr)
			}
		}
	}()

	if err = write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// WriteFileAtomic 写入整块内容
func WriteFileAtomic(path string, data []byte) error {
	return WriteAtomic(path, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
}

// readFile 打开失败统一包装路径
func readFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if err := read(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadName2Loc 读取目录中的 name2loc.json
func (d Dir) LoadName2Loc() (map[string]cfa.FileLocation, error) {
	var out map[string]cfa.FileLocation
	err := readFile(d.Path(Name2LocFile), func(r io.Reader) error {
		var e error
		out, e = ReadName2Loc(r)
		return e
	})
	return out, err
}

// LoadLoc2Guide 读取目录中的 loc2guide.json
func (d Dir) LoadLoc2Guide() ([]LocatedGuide, error) {
	var out []LocatedGuide
	err := readFile(d.Path(Loc2GuideFile), func(r io.Reader) error {
		var e error
		out, e = ReadLoc2Guide(r)
		return e
	})
	return out, err
}
