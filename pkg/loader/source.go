package loader

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// CompressedSuffix marks result files stored as an LZ4 frame.
const CompressedSuffix = ".lz4"

// ReadFile returns the document stored at path, decompressing LZ4 frames.
func ReadFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var src io.Reader = file
	if strings.HasSuffix(path, CompressedSuffix) {
		src = lz4.NewReader(file)
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return data, nil
}

// WriteCompressed writes data to path as an LZ4 frame.
func WriteCompressed(path string, data []byte) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	zw := lz4.NewWriter(file)

	_, err = zw.Write(data)
	if err == nil {
		err = zw.Close()
	}

	closeErr := file.Close()
	if err != nil {
		return fmt.Errorf("compress %s: %w", path, err)
	}

	if closeErr != nil {
		return fmt.Errorf("close %s: %w", path, closeErr)
	}

	return nil
}
