package core

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cintfix/internal/rewrite"
)

// excludedDirs 展开目录时跳过的目录
var excludedDirs = map[string]bool{
	"build":       true,
	"dist":        true,
	"vendor":      true,
	".git":        true,
	".svn":        true,
	".hg":         true,
	"third_party": true,
	"thirdparty":  true,
	"3rdparty":    true,
	"external":    true,
	".cache":      true,
	".idea":       true,
	".vscode":     true,
	"cmake-build": true,
	"intfix_meta": true,
}

// isTranslationUnit 只处理 .c 和预处理后的 .i，跳过已生成的补丁文件
func isTranslationUnit(path string) bool {
	if strings.HasSuffix(path, rewrite.FixedSuffix) {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c", ".i":
		return true
	}
	return false
}

// CollectUnits 展开命令行参数：文件原样保留，目录递归收集翻译单元
// 结果去重并排序
func CollectUnits(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(filepath.Clean(arg))
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && excludedDirs[strings.ToLower(d.Name())] {
					return filepath.SkipDir
				}
				return nil
			}
			if isTranslationUnit(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}

	sort.Strings(files)
	return files, nil
}
