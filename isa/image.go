package isa

import "encoding/binary"

// Image is an ordered sequence of words, indexed from 0: the canonical
// on-disk and in-memory program representation (C1).
type Image []Word

// DecodeImage groups raw bytes into little-endian word pairs. A trailing odd
// byte, if present, is silently discarded.
func DecodeImage(data []byte) Image {
	n := len(data) / 2
	img := make(Image, n)
	for i := 0; i < n; i++ {
		img[i] = Word(binary.LittleEndian.Uint16(data[2*i : 2*i+2]))
	}
	return img
}

// Encode serializes the image back to little-endian byte pairs.
func (img Image) Encode() []byte {
	out := make([]byte, len(img)*2)
	for i, w := range img {
		binary.LittleEndian.PutUint16(out[2*i:2*i+2], uint16(w))
	}
	return out
}
