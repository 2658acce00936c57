package compression

import "fmt"

// Extension returns the filename suffix for typ, including the leading dot.
func Extension(typ Type) (string, error) {
	switch typ {
	case TypeNone:
		return "", nil
	case TypeGZIP:
		return ".gz", nil
	case TypeZSTD:
		return ".zstd", nil
	default:
		return "", fmt.Errorf(`unexpected compression type "%s"`, typ)
	}
}

// Filename appends the compression suffix to name.
func Filename(name string, typ Type) (string, error) {
	ext, err := Extension(typ)
	if err != nil {
		return "", err
	}
	return name + ext, nil
}
