package crypto

// Counter arithmetic for seekable stream-cipher modes. A byte position in
// the stream maps to a block counter and an intra-block offset; the counter
// combined with the stream's base IV selects the keystream block. Plaintext
// and ciphertext have a 1:1 mapping, so the same arithmetic covers both.

// BlockCounter returns the cipher block counter for an absolute byte
// position. position must be non-negative and blockSize positive.
func BlockCounter(position int64, blockSize int) uint64 {
	return uint64(position) / uint64(blockSize)
}

// BlockPadding returns the byte offset within the block at which position
// falls. Bytes before this offset belong to the same block and must be fed
// through the cipher but discarded from output.
func BlockPadding(position int64, blockSize int) int {
	return int(uint64(position) % uint64(blockSize))
}

// CalculateIV derives the IV for a given block counter by adding counter to
// initIV, treating the IV as one big-endian unsigned integer. This matches
// the counter increment CTR mode performs per block, so initializing a
// cipher with the derived IV is equivalent to running it sequentially from
// byte zero up to counter*blockSize.
//
// iv receives the result and must have the same length as initIV. initIV is
// never modified; iv and initIV must not alias.
func CalculateIV(initIV []byte, counter uint64, iv []byte) {
	var sum uint64
	for i := len(iv) - 1; i >= 0; i-- {
		sum = uint64(initIV[i]) + (counter & 0xff) + (sum >> 8)
		counter >>= 8
		iv[i] = byte(sum)
	}
}
