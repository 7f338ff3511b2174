package models

// Photo is one captured image as known to a gallery session.
type Photo struct {
	// StoragePath is where the filesystem provider persisted the bytes.
	StoragePath string `json:"storagePath"`
	// DisplayPath is a directly renderable reference, when it differs from StoragePath.
	DisplayPath string `json:"displayPath,omitempty"`
}

// Duplicate groups the storage paths of byte-identical photos.
type Duplicate struct {
	Hash  string   `json:"hash"`
	Paths []string `json:"paths"`
}

type Report struct {
	Photos     int         `json:"photos"`
	Missing    []string    `json:"missing"`
	Orphans    []string    `json:"orphans"`
	Duplicates []Duplicate `json:"duplicates"`
}

// Media is a file found on disk, optionally with its content hash.
type Media struct {
	Path string
	Hash []byte
	Err  error `json:"-"`
}
