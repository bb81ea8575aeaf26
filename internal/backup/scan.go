// SPDX-License-Identifier: MIT

package backup

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Scan walks root and totals the files the filter accepts. Directories are
// always descended; the filter applies to files only. Walk errors abort the
// scan. Symlinks are measured through their target; a symlink pointing at a
// directory is skipped, matching the copy behavior.
func Scan(ctx context.Context, root string, filter Filter) (Summary, error) {
	var sum Summary
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !filter.Accepts(path) {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		sum.Files++
		sum.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("backup: scan %s: %w", root, err)
	}
	return sum, nil
}

// BuildPlan walks src in the same order as Scan and mirrors its directory
// tree under dst. Every source directory is recorded for creation even when
// the filter leaves it empty; every accepted file becomes a copy pair whose
// destination is dst joined with the file's path relative to src.
func BuildPlan(ctx context.Context, src, dst string, filter Filter) (Plan, error) {
	var plan Plan
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			plan.Dirs = append(plan.Dirs, target)
			return nil
		}
		if !filter.Accepts(path) {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		plan.Pairs = append(plan.Pairs, Pair{Src: path, Dst: target})
		return nil
	})
	if err != nil {
		return Plan{}, fmt.Errorf("backup: plan %s: %w", src, err)
	}
	return plan, nil
}
