package crypto

// cipherState pairs one pooled cipher primitive with a flag recording
// whether the primitive discarded its internal keystream position during
// the last operation. needsInit is set when Update under-consumed and Final
// had to run, and cleared every time the transform is re-initialized with a
// counter. A state is owned by exactly one in-flight decrypt call between
// checkout and return.
type cipherState struct {
	transform Transform
	needsInit bool
}
