// Package fixtures builds small, in-memory ISO 9660 and PKZIP archives for
// package tests that need a real mountable image rather than a single
// hand-rolled record.
package fixtures

import (
	"archive/zip"
	"bytes"
)

// ZIPFile describes one entry to place in a BuildZIP archive.
type ZIPFile struct {
	Name    string
	Content []byte
	IsDir   bool
}

// ThreeFileZIP returns the three-file archive used across zipfs tests: a
// top-level file, an explicit empty directory, and a file nested one level
// deep, split across Store and Deflate compression methods so both decode
// paths are exercised.
func ThreeFileZIP() []byte {
	return BuildZIP([]ZIPFile{
		{Name: "hello.txt", Content: []byte("Hello, World!")},
		{Name: "empty/", IsDir: true},
		{Name: "dir/nested.txt", Content: []byte("nested file contents")},
	})
}

// BuildZIP writes files into a standard PKZIP archive using the standard
// library's archive/zip writer, so the resulting central directory and
// local headers are byte-for-byte what a real zip tool would produce.
func BuildZIP(files []ZIPFile) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, f := range files {
		if f.IsDir {
			_, err := w.Create(f.Name)
			if err != nil {
				panic(err)
			}
			continue
		}
		method := zip.Store
		if len(f.Content) > 0 && len(f.Content)%2 == 0 {
			method = zip.Deflate
		}
		hdr := &zip.FileHeader{Name: f.Name, Method: method}
		fw, err := w.CreateHeader(hdr)
		if err != nil {
			panic(err)
		}
		if _, err := fw.Write(f.Content); err != nil {
			panic(err)
		}
	}

	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
