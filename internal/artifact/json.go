package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"cintfix/internal/absint"
	"cintfix/internal/cfa"
	"cintfix/internal/fixguide"
)

// NullTarget 没有目标时 JSON 中的占位串
const NullTarget = "$NULLSTR$"

// ErrMalformedInput 元数据文件格式错误
var ErrMalformedInput = errors.New("artifact: malformed metadata")

// 字段顺序即输出的键顺序
type nameLocRecord struct {
	VarName   string `json:"varname"`
	StartLine int    `json:"startline"`
	EndLine   int    `json:"endline"`
	FileName  string `json:"filename"`
	Offset    int    `json:"offset"`
	Length    int    `json:"length"`
}

type guideRecord struct {
	StartLine int    `json:"startline"`
	EndLine   int    `json:"endline"`
	FileName  string `json:"filename"`
	Offset    int    `json:"offset"`
	Length    int    `json:"length"`
	Kind      string `json:"kind"`
	Method    string `json:"method"`
	BaseType  string `json:"basetype"`
	RefLevel  int    `json:"reflevel"`
	Target    string `json:"target"`
}

// LocatedGuide 一条位置到指引的记录
type LocatedGuide struct {
	Loc   cfa.FileLocation
	Guide fixguide.Guide
}

func encodeCompact(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	return err
}

// WriteName2Loc 按变量名排序输出
func WriteName2Loc(w io.Writer, name2loc map[string]cfa.FileLocation) error {
	names := make([]string, 0, len(name2loc))
	for n := range name2loc {
		names = append(names, n)
	}
	sort.Strings(names)
	records := make([]nameLocRecord, 0, len(names))
	for _, n := range names {
		loc := name2loc[n]
		records = append(records, nameLocRecord{
			VarName:   n,
			StartLine: loc.StartLine,
			EndLine:   loc.EndLine,
			FileName:  loc.File,
			Offset:    loc.Offset,
			Length:    loc.Length,
		})
	}
	return encodeCompact(w, records)
}

// ReadName2Loc 读取 name2loc.json
func ReadName2Loc(r io.Reader) (map[string]cfa.FileLocation, error) {
	var records []nameLocRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: name2loc: %v", ErrMalformedInput, err)
	}
	out := make(map[string]cfa.FileLocation, len(records))
	for _, rec := range records {
		if rec.VarName == "" {
			return nil, fmt.Errorf("%w: name2loc: empty varname", ErrMalformedInput)
		}
		out[rec.VarName] = cfa.FileLocation{
			File:      rec.FileName,
			StartLine: rec.StartLine,
			EndLine:   rec.EndLine,
			Offset:    rec.Offset,
			Length:    rec.Length,
		}
	}
	return out, nil
}

// SortedGuides 按位置排序
func SortedGuides(loc2guide map[cfa.FileLocation]fixguide.Guide) []LocatedGuide {
	locs := make([]cfa.FileLocation, 0, len(loc2guide))
	for l := range loc2guide {
		locs = append(locs, l)
	}
	cfa.SortLocations(locs)
	out := make([]LocatedGuide, len(locs))
	for i, l := range locs {
		out[i] = LocatedGuide{Loc: l, Guide: loc2guide[l]}
	}
	return out
}

func guideToRecord(loc cfa.FileLocation, g fixguide.Guide) guideRecord {
	target, ok := g.TargetName()
	if !ok {
		target = NullTarget
	}
	return guideRecord{
		StartLine: loc.StartLine,
		EndLine:   loc.EndLine,
		FileName:  loc.File,
		Offset:    loc.Offset,
		Length:    loc.Length,
		Kind:      g.KindString(),
		Method:    g.Method.String(),
		BaseType:  g.Type.Code(),
		RefLevel:  g.RefLevel,
		Target:    target,
	}
}

func recordToGuide(rec guideRecord) (cfa.FileLocation, fixguide.Guide, error) {
	loc := cfa.FileLocation{
		File:      rec.FileName,
		StartLine: rec.StartLine,
		EndLine:   rec.EndLine,
		Offset:    rec.Offset,
		Length:    rec.Length,
	}
	var g fixguide.Guide
	switch rec.Kind {
	case "int":
	case "ptr":
		g.Pointer = true
	default:
		return loc, g, fmt.Errorf("%w: loc2guide: unknown kind %q", ErrMalformedInput, rec.Kind)
	}
	m, err := fixguide.ParseMethod(rec.Method)
	if err != nil {
		return loc, g, fmt.Errorf("%w: loc2guide: %v", ErrMalformedInput, err)
	}
	g.Method = m
	g.Type = absint.ParseCode(rec.BaseType)
	g.RefLevel = rec.RefLevel
	if rec.Target != NullTarget {
		g.Target = rec.Target
	}
	return loc, g, nil
}

// WriteLoc2Guide 按位置排序输出
func WriteLoc2Guide(w io.Writer, loc2guide map[cfa.FileLocation]fixguide.Guide) error {
	sorted := SortedGuides(loc2guide)
	records := make([]guideRecord, 0, len(sorted))
	for _, lg := range sorted {
		records = append(records, guideToRecord(lg.Loc, lg.Guide))
	}
	return encodeCompact(w, records)
}

// ReadLoc2Guide 读取 loc2guide.json，保持文件中的顺序
func ReadLoc2Guide(r io.Reader) ([]LocatedGuide, error) {
	var records []guideRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: loc2guide: %v", ErrMalformedInput, err)
	}
	out := make([]LocatedGuide, 0, len(records))
	for _, rec := range records {
		loc, g, err := recordToGuide(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, LocatedGuide{Loc: loc, Guide: g})
	}
	return out, nil
}
