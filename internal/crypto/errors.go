package crypto

import "errors"

// Sentinel errors returned by the pipeline stages. Callers match them with
// errors.Is; every wrapped error keeps the point-of-detection context in its
// message.
var (
	// ErrInvalidArgument reports caller misuse, such as feeding the raw
	// cipher stage a stream whose length is not a multiple of the block
	// size, or supplying a salt, IV or key of the wrong length.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDataTruncated reports structurally incomplete input: a missing
	// salt or IV header, a record without its MAC tag, or a stream that
	// ends mid-header.
	ErrDataTruncated = errors.New("data truncated")

	// ErrDataDamaged reports structurally complete but invalid content,
	// such as a plaintext stream with no valid padding at its end. It
	// usually means the passphrase is wrong or the file was corrupted.
	ErrDataDamaged = errors.New("data damaged")

	// ErrBadMac reports a MAC tag mismatch. The offending chunk is never
	// released to the caller. Like ErrDataDamaged it means tampering,
	// corruption or a wrong passphrase, and is never worth retrying.
	ErrBadMac = errors.New("bad mac")
)
