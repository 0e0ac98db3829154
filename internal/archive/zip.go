// README: Store-only ZIP writer used for session exports (local headers, central directory, EOCD).
package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	sigLocalHeader   = 0x04034b50
	sigCentralHeader = 0x02014b50
	sigEndOfCentral  = 0x06054b50

	versionStored = 10 // 1.0: stored entries only
	versionMadeBy = 20
	flagUTF8Name  = 0x0800
	methodStore   = 0

	maxEntries = 0xFFFF
	maxUint32  = 0xFFFFFFFF
)

var (
	ErrEmptyName      = errors.New("archive: file name is empty")
	ErrTooManyEntries = errors.New("archive: too many entries")
	ErrTooLarge       = errors.New("archive: archive exceeds 4 GiB")
)

// File is one named entry of an archive.
type File struct {
	Name    string
	Content []byte
}

var crcTable = makeCRCTable()

func makeCRCTable() [256]uint32 {
	var t [256]uint32
	for i := range t {
		c := uint32(i)
		for k := 0; k < 8; k++ {
			if c&1 == 1 {
				c = 0xEDB88320 ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		t[i] = c
	}
	return t
}

// CRC32 returns the IEEE CRC-32 checksum of data.
func CRC32(data []byte) uint32 {
	c := ^uint32(0)
	for _, b := range data {
		c = crcTable[byte(c)^b] ^ (c >> 8)
	}
	return ^c
}

// DOSDateTime converts t to MS-DOS date and time fields. Years outside 1980–2107 are clamped.
func DOSDateTime(t time.Time) (date, clock uint16) {
	year := t.Year()
	switch {
	case year < 1980:
		return 1<<5 | 1, 0
	case year > 2107:
		return uint16(127<<9 | 12<<5 | 31), uint16(23<<11 | 59<<5 | 59/2)
	}
	date = uint16((year-1980)<<9 | int(t.Month())<<5 | t.Day())
	clock = uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()/2)
	return date, clock
}

type centralEntry struct {
	name   []byte
	crc    uint32
	size   uint32
	offset uint32
}

// Build assembles files into an uncompressed ZIP archive stamped with now.
func Build(files []File, now time.Time) ([]byte, error) {
	if len(files) > maxEntries {
		return nil, ErrTooManyEntries
	}
	date, clock := DOSDateTime(now)

	var buf bytes.Buffer
	entries := make([]centralEntry, 0, len(files))
	for _, f := range files {
		if f.Name == "" {
			return nil, ErrEmptyName
		}
		if len(f.Name) > 0xFFFF {
			return nil, fmt.Errorf("archive: name too long: %.40s", f.Name)
		}
		offset := buf.Len()
		if uint64(offset)+uint64(len(f.Content)) > maxUint32 {
			return nil, ErrTooLarge
		}
		e := centralEntry{
			name:   []byte(f.Name),
			crc:    CRC32(f.Content),
			size:   uint32(len(f.Content)),
			offset: uint32(offset),
		}

		le := binary.LittleEndian
		var h [30]byte
		le.PutUint32(h[0:], sigLocalHeader)
		le.PutUint16(h[4:], versionStored)
		le.PutUint16(h[6:], flagUTF8Name)
		le.PutUint16(h[8:], methodStore)
		le.PutUint16(h[10:], clock)
		le.PutUint16(h[12:], date)
		le.PutUint32(h[14:], e.crc)
		le.PutUint32(h[18:], e.size)
		le.PutUint32(h[22:], e.size)
		le.PutUint16(h[26:], uint16(len(e.name)))
		le.PutUint16(h[28:], 0)
		buf.Write(h[:])
		buf.Write(e.name)
		buf.Write(f.Content)

		entries = append(entries, e)
	}

	cdStart := buf.Len()
	for _, e := range entries {
		le := binary.LittleEndian
		var h [46]byte
		le.PutUint32(h[0:], sigCentralHeader)
		le.PutUint16(h[4:], versionMadeBy)
		le.PutUint16(h[6:], versionStored)
		le.PutUint16(h[8:], flagUTF8Name)
		le.PutUint16(h[10:], methodStore)
		le.PutUint16(h[12:], clock)
		le.PutUint16(h[14:], date)
		le.PutUint32(h[16:], e.crc)
		le.PutUint32(h[20:], e.size)
		le.PutUint32(h[24:], e.size)
		le.PutUint16(h[28:], uint16(len(e.name)))
		// extra, comment, disk start, internal attrs: zero
		le.PutUint32(h[38:], 0)
		le.PutUint32(h[42:], e.offset)
		buf.Write(h[:])
		buf.Write(e.name)
	}
	cdSize := buf.Len() - cdStart
	if uint64(buf.Len())+22 > maxUint32 {
		return nil, ErrTooLarge
	}

	le := binary.LittleEndian
	var end [22]byte
	le.PutUint32(end[0:], sigEndOfCentral)
	le.PutUint16(end[8:], uint16(len(entries)))
	le.PutUint16(end[10:], uint16(len(entries)))
	le.PutUint32(end[12:], uint32(cdSize))
	le.PutUint32(end[16:], uint32(cdStart))
	buf.Write(end[:])

	return buf.Bytes(), nil
}
