package udev

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"k8s.io/klog/v2"
)

const (
	maxAttrSize = 128 * 1024 // 128KB
)

func openLimited(fs afero.Fs, p string) (io.Reader, func(), error) {
	f, err := fs.Open(p)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := f.Close(); err != nil {
			klog.V(5).Infof("cannot close %s: %v", p, err)
		}
	}
	return io.LimitReader(f, maxAttrSize), closer, nil
}

// readAttr returns the trimmed content of a single-value sysfs attribute.
func readAttr(fs afero.Fs, p string) (string, error) {
	r, closer, err := openLimited(fs, p)
	if err != nil {
		return "", err
	}
	defer closer()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", p, err)
	}
	return strings.Trim(string(data), "\n\r\t "), nil
}

// readKeyValues parses a file of sep-separated KEY<sep>VALUE lines. A missing
// file yields an empty map.
func readKeyValues(fs afero.Fs, p, sep string) (map[string]string, error) {
	res := make(map[string]string)

	r, closer, err := openLimited(fs, p)
	if err != nil {
		if isAbsent(err) {
			return res, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer closer()

	buf := bufio.NewScanner(r)
	for buf.Scan() {
		k, v, ok := strings.Cut(buf.Text(), sep)
		if !ok {
			continue
		}
		res[k] = v
	}
	if err := buf.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return res, nil
}

type databaseRecord struct {
	devnode         string
	devlinks        []string
	tags            []string
	properties      map[string]string
	usecInitialized *uint64
}

// readDatabaseRecord parses a udev database file. Missing files are returned
// as errors so the caller can tell an uninitialized device apart.
func readDatabaseRecord(fs afero.Fs, p string) (*databaseRecord, error) {
	r, closer, err := openLimited(fs, p)
	if err != nil {
		if isAbsent(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open udev database record %s: %w", p, err)
	}
	defer closer()

	record := &databaseRecord{properties: make(map[string]string)}
	seenTags := make(map[string]bool)

	buf := bufio.NewScanner(r)
	for buf.Scan() {
		k, v, ok := strings.Cut(buf.Text(), ":")
		if !ok || len(k) != 1 {
			continue
		}

		switch k {
		case "N":
			record.devnode = v
		case "S":
			record.devlinks = append(record.devlinks, v)
		case "E":
			ek, ev, ok := strings.Cut(v, "=")
			if !ok {
				continue
			}
			record.properties[ek] = ev
		case "G", "Q":
			if !seenTags[v] {
				seenTags[v] = true
				record.tags = append(record.tags, v)
			}
		case "I":
			usec, err := parseUint(v)
			if err != nil {
				klog.V(4).Infof("ignoring malformed initialization time %q in %s", v, p)
				continue
			}
			record.usecInitialized = usec
		}
	}
	if err := buf.Err(); err != nil {
		return nil, fmt.Errorf("failed to read udev database record %s: %w", p, err)
	}
	return record, nil
}
