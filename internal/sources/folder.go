package sources

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"flowsheet/internal/query"
	"flowsheet/internal/table"
)

func init() { Register(query.SourceFolder, folderAdapter{}) }

// folderAdapter lists files under src.Path as a metadata table (Name,
// Folder Path, Extension, Size), mirroring Power Query's Folder.Files:
// the result is a normal table a later step can filter and combine
// rather than a pre-loaded dataset.
type folderAdapter struct{}

func (folderAdapter) Load(_ context.Context, src query.Source, _ *Environment) (*table.Table, error) {
	cols := []table.Column{
		{Name: "Name", Type: table.TypeString},
		{Name: "Folder Path", Type: table.TypeString},
		{Name: "Extension", Type: table.TypeString},
		{Name: "Size", Type: table.TypeNumber},
	}
	var rows [][]any
	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != src.Path && !src.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			d.Name(),
			filepath.Dir(path),
			filepath.Ext(d.Name()),
			float64(info.Size()),
		})
		return nil
	}
	if err := filepath.WalkDir(src.Path, walkFn); err != nil {
		return nil, fmt.Errorf("sources: list folder %q: %w", src.Path, err)
	}
	return table.New(cols, rows)
}
