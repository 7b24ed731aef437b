package rewrite

import (
	"io"

	"cintfix/internal/artifact"
	"cintfix/internal/sourcetree"
)

// FixedSuffix 补丁文件的后缀
const FixedSuffix = ".fixed.i"

// OutputPath 去掉翻译单元文件名的两字符扩展名（.c / .i）再加上 .fixed.i
func OutputPath(tu string) string {
	if len(tu) < 2 {
		return tu + FixedSuffix
	}
	return tu[:len(tu)-2] + FixedSuffix
}

// WriteFixed 写出外部声明头和改写后的翻译单元
func WriteFixed(w io.Writer, tree *sourcetree.Tree) error {
	if _, err := io.WriteString(w, Header); err != nil {
		return err
	}
	_, err := tree.WriteTo(w)
	return err
}

// Save 原子地写出补丁文件，失败时不会留下半个文件
func Save(path string, tree *sourcetree.Tree) error {
	return artifact.WriteAtomic(path, func(w io.Writer) error {
		return WriteFixed(w, tree)
	})
}
