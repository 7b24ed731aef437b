package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"cintfix/internal/absint"
	"cintfix/internal/cfa"
	"cintfix/internal/constraint"
	"cintfix/internal/fixguide"
)

// 格式变化时递增
const bundleSchemaVersion uint16 = 1

// ErrStaleCache 缓存与源文件不一致
var ErrStaleCache = errors.New("artifact: analysis cache is stale")

type termRecord struct {
	Name   string `msgpack:"n"`
	IsType bool   `msgpack:"t"`
}

type predRecord struct {
	Kind  uint8      `msgpack:"k"`
	Left  termRecord `msgpack:"l"`
	Right termRecord `msgpack:"r"`
}

type constraintRecord struct {
	Soft  bool         `msgpack:"soft"`
	Preds []predRecord `msgpack:"preds"`
}

type cachedGuide struct {
	Loc      cfa.FileLocation `msgpack:"loc"`
	Pointer  bool             `msgpack:"ptr"`
	Method   uint8            `msgpack:"method"`
	Type     string           `msgpack:"type"`
	RefLevel int              `msgpack:"level"`
	Target   string           `msgpack:"target"`
}

// Bundle 一次分析的全部产物
type Bundle struct {
	Schema      uint16
	Source      string
	SourceHash  string
	Constraints []constraint.Constraint `msgpack:"-"`
	Name2Loc    map[string]cfa.FileLocation
	Loc2Guide   map[cfa.FileLocation]fixguide.Guide `msgpack:"-"`
	PointsTo    map[string]string
	IntNames    []string

	// 序列化用的扁平形式
	RawConstraints []constraintRecord
	RawGuides      []cachedGuide
}

// HashSource 源文件内容摘要，用于判断缓存是否过期
func HashSource(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func termToRecord(t constraint.Term) termRecord {
	if t.IsType {
		return termRecord{Name: t.Type.Code(), IsType: true}
	}
	return termRecord{Name: t.Name}
}

func recordToTerm(r termRecord) constraint.Term {
	if r.IsType {
		return constraint.TypeTerm(absint.ParseCode(r.Name))
	}
	return constraint.Var(r.Name)
}

func (b *Bundle) flatten() {
	b.Schema = bundleSchemaVersion
	b.RawConstraints = make([]constraintRecord, 0, len(b.Constraints))
	for _, c := range b.Constraints {
		rec := constraintRecord{Soft: c.Soft}
		for _, p := range c.Preds {
			rec.Preds = append(rec.Preds, predRecord{
				Kind:  uint8(p.Kind),
				Left:  termToRecord(p.Left),
				Right: termToRecord(p.Right),
			})
		}
		b.RawConstraints = append(b.RawConstraints, rec)
	}
	b.RawGuides = make([]cachedGuide, 0, len(b.Loc2Guide))
	for _, lg := range SortedGuides(b.Loc2Guide) {
		b.RawGuides = append(b.RawGuides, cachedGuide{
			Loc:      lg.Loc,
			Pointer:  lg.Guide.Pointer,
			Method:   uint8(lg.Guide.Method),
			Type:     lg.Guide.Type.Code(),
			RefLevel: lg.Guide.RefLevel,
			Target:   lg.Guide.Target,
		})
	}
}

func (b *Bundle) inflate() {
	b.Constraints = make([]constraint.Constraint, 0, len(b.RawConstraints))
	for _, rec := range b.RawConstraints {
		c := constraint.Constraint{Soft: rec.Soft}
		for _, p := range rec.Preds {
			c.Preds = append(c.Preds, constraint.Predicate{
				Kind:  constraint.PredKind(p.Kind),
				Left:  recordToTerm(p.Left),
				Right: recordToTerm(p.Right),
			})
		}
		b.Constraints = append(b.Constraints, c)
	}
	b.Loc2Guide = make(map[cfa.FileLocation]fixguide.Guide, len(b.RawGuides))
	for _, g := range b.RawGuides {
		b.Loc2Guide[g.Loc] = fixguide.Guide{
			Pointer:  g.Pointer,
			Method:   fixguide.Method(g.Method),
			Type:     absint.ParseCode(g.Type),
			RefLevel: g.RefLevel,
			Target:   g.Target,
		}
	}
	b.RawConstraints = nil
	b.RawGuides = nil
}

// EncodeBundle 以 msgpack 写出
func EncodeBundle(w io.Writer, b *Bundle) error {
	cp := *b
	cp.flatten()
	return msgpack.NewEncoder(w).Encode(&cp)
}

// DecodeBundle 读取 msgpack 缓存
func DecodeBundle(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := msgpack.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: cache: %v", ErrMalformedInput, err)
	}
	if b.Schema != bundleSchemaVersion {
		return nil, fmt.Errorf("%w: schema %d", ErrStaleCache, b.Schema)
	}
	b.inflate()
	return &b, nil
}

// SaveBundle 原子写入缓存文件
func (d Dir) SaveBundle(b *Bundle) error {
	return WriteAtomic(d.Path(CacheFile), func(w io.Writer) error {
		return EncodeBundle(w, b)
	})
}

// LoadBundle 读取缓存；源文件摘要不一致时返回 ErrStaleCache
func (d Dir) LoadBundle(sourceHash string) (*Bundle, error) {
	var b *Bundle
	err := readFile(d.Path(CacheFile), func(r io.Reader) error {
		var e error
		b, e = DecodeBundle(r)
		return e
	})
	if err != nil {
		return nil, err
	}
	if sourceHash != "" && b.SourceHash != sourceHash {
		return nil, fmt.Errorf("%w: %s", ErrStaleCache, d.Path(CacheFile))
	}
	return b, nil
}

// Exists 目录中是否有某个产物
func (d Dir) Exists(name string) bool {
	_, err := os.Stat(d.Path(name))
	return err == nil
}
