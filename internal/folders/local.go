package folders

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"coachflow/internal/fileutil"
	"coachflow/internal/services"
)

const trashDir = ".trash"

var localMimeTypes = map[string]string{
	".mp4": "video/mp4",
	".m4a": "audio/mp4",
	".mp3": "audio/mpeg",
	".txt": "text/plain",
}

// Local stores folders as directories under a root. Folder IDs are paths
// relative to the root; file IDs are derived from the file's relative path.
type Local struct {
	root string
}

// NewLocal returns a local backend rooted at root, creating it if needed.
func NewLocal(root string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "folders", "init local", "root is required", nil)
	}
	if err := os.MkdirAll(filepath.Join(root, trashDir), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "folders", "init local", root, err)
	}
	return &Local{root: root}, nil
}

// Folder returns the directory for id.
func (l *Local) Folder(_ context.Context, id string) (Folder, error) {
	dir, err := l.folderPath(id)
	if err != nil {
		return Folder{}, err
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return Folder{}, notFound(id)
	}
	if err != nil {
		return Folder{}, services.Wrap(services.ErrTransient, "folders", "folder", id, err)
	}
	if !info.IsDir() {
		return Folder{}, services.Wrap(services.ErrValidation, "folders", "folder", id+" is not a folder", nil)
	}
	return Folder{ID: id, Name: filepath.Base(dir)}, nil
}

// ListFiles returns regular files in parent, sorted by name.
func (l *Local) ListFiles(ctx context.Context, parent string, filter Filter) ([]File, error) {
	if _, err := l.Folder(ctx, parent); err != nil {
		return nil, err
	}
	dir, _ := l.folderPath(parent)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "folders", "list", parent, err)
	}
	var files []File
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		f := File{
			ID:       l.fileID(filepath.Join(dir, entry.Name())),
			Name:     entry.Name(),
			MimeType: mimeTypeFor(entry.Name()),
			Size:     info.Size(),
		}
		if filter.Matches(f) {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// CreateFile writes content atomically into parent. An existing file with
// the same name is never replaced.
func (l *Local) CreateFile(ctx context.Context, parent, name string, content []byte, mimeType string) (File, error) {
	if err := validName(name); err != nil {
		return File{}, err
	}
	if _, err := l.Folder(ctx, parent); err != nil {
		return File{}, err
	}
	dir, _ := l.folderPath(parent)
	path := filepath.Join(dir, name)
	if _, err := os.Lstat(path); err == nil {
		return File{}, services.Wrap(services.ErrValidation, "folders", "create", name+" already exists", nil)
	}
	if err := fileutil.WriteFileAtomic(path, content, 0o644); err != nil {
		return File{}, services.Wrap(services.ErrTransient, "folders", "create", name, err)
	}
	if mimeType == "" {
		mimeType = mimeTypeFor(name)
	}
	return File{ID: l.fileID(path), Name: name, MimeType: mimeType, Size: int64(len(content))}, nil
}

// RenameFile renames a file within its directory.
func (l *Local) RenameFile(_ context.Context, id, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	path, err := l.resolve(id)
	if err != nil {
		return err
	}
	target := filepath.Join(filepath.Dir(path), name)
	if target == path {
		return nil
	}
	if _, err := os.Stat(target); err == nil {
		return services.Wrap(services.ErrValidation, "folders", "rename", name+" already exists", nil)
	}
	if err := os.Rename(path, target); err != nil {
		return services.Wrap(services.ErrTransient, "folders", "rename", id, err)
	}
	return nil
}

// TrashFile moves a file into the root's trash directory.
func (l *Local) TrashFile(_ context.Context, id string) error {
	path, err := l.resolve(id)
	if err != nil {
		return err
	}
	target := fileutil.UniquePath(filepath.Join(l.root, trashDir, filepath.Base(path)))
	if err := fileutil.MoveFile(path, target); err != nil {
		return services.Wrap(services.ErrTransient, "folders", "trash", id, err)
	}
	return nil
}

func (l *Local) folderPath(id string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(id))
	if clean == "/" || strings.HasPrefix(strings.TrimPrefix(clean, "/"), trashDir) {
		return "", services.Wrap(services.ErrValidation, "folders", "folder", "invalid folder id "+id, nil)
	}
	return filepath.Join(l.root, clean), nil
}

func (l *Local) fileID(path string) string {
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		rel = path
	}
	sum := sha256.Sum256([]byte(filepath.ToSlash(rel)))
	return hex.EncodeToString(sum[:])[:20]
}

func (l *Local) resolve(id string) (string, error) {
	var found string
	errFound := errors.New("found")
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == trashDir {
				return filepath.SkipDir
			}
			return nil
		}
		if l.fileID(path) == id {
			found = path
			return errFound
		}
		return nil
	})
	if found != "" {
		return found, nil
	}
	if err != nil && !errors.Is(err, errFound) {
		return "", services.Wrap(services.ErrTransient, "folders", "resolve", id, err)
	}
	return "", notFound(id)
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return services.Wrap(services.ErrValidation, "folders", "name", "invalid file name "+name, nil)
	}
	return nil
}

func mimeTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := localMimeTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
