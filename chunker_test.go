package mcumgr

import (
	"math"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageUploadChunkSizingScenario(t *testing.T) {
	// a 384-byte SMP MTU must yield a worst-case-probe CBOR size in [374, 376].
	const mtu = 384
	d, err := imageUploadMaxChunkSize(mtu)
	require.NoError(t, err)

	maxLen := uint64(math.MaxUint64)
	maxImage := uint32(math.MaxUint32)
	upgrade := true
	sha := make([]byte, 32)
	for i := range sha {
		sha[i] = 0xff
	}
	probe := ImageUploadRequest{
		Off:     math.MaxUint64,
		Data:    make([]byte, d),
		Len:     &maxLen,
		Image:   &maxImage,
		Sha:     sha,
		Upgrade: &upgrade,
	}
	encoded, err := cbor.Marshal(probe)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(encoded), 374)
	assert.LessOrEqual(t, len(encoded), 376)
}

func TestChunkSizerSoundnessImageUpload(t *testing.T) {
	const minViable = 101
	for mtu := minViable; mtu < 2000; mtu += 37 {
		d, err := imageUploadMaxChunkSize(mtu)
		require.NoErrorf(t, err, "mtu=%d", mtu)
		assertWorstCaseImageProbeFits(t, mtu, d)
	}
}

func TestChunkSizerSoundnessFileUpload(t *testing.T) {
	const minViable = 57
	for mtu := minViable; mtu < 2000; mtu += 37 {
		d, err := fileUploadMaxChunkSize(mtu, "a-file.t")
		require.NoErrorf(t, err, "mtu=%d", mtu)
		assertWorstCaseFileProbeFits(t, mtu, "a-file.t", d)
	}
}

func TestChunkSizerTooSmall(t *testing.T) {
	_, err := fileUploadMaxChunkSize(56, "a-file.t")
	require.Error(t, err)
	var fe *FrameSizeTooSmallError
	require.ErrorAs(t, err, &fe)

	_, err = imageUploadMaxChunkSize(100)
	require.Error(t, err)
	require.ErrorAs(t, err, &fe)
}

func assertWorstCaseImageProbeFits(t *testing.T, mtu, d int) {
	t.Helper()
	maxLen := uint64(math.MaxUint64)
	maxImage := uint32(math.MaxUint32)
	upgrade := true
	sha := make([]byte, 32)
	for i := range sha {
		sha[i] = 0xff
	}
	probe := ImageUploadRequest{Off: math.MaxUint64, Data: make([]byte, d), Len: &maxLen, Image: &maxImage, Sha: sha, Upgrade: &upgrade}
	encoded, err := cbor.Marshal(probe)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(encoded), mtu-mgmtHeaderSize)
	assert.GreaterOrEqual(t, len(encoded), mtu-mgmtHeaderSize-2)
}

func assertWorstCaseFileProbeFits(t *testing.T, mtu int, name string, d int) {
	t.Helper()
	maxLen := uint64(math.MaxUint64)
	probe := FileUploadRequest{Off: math.MaxUint64, Data: make([]byte, d), Name: name, Len: &maxLen}
	encoded, err := cbor.Marshal(probe)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(encoded), mtu-mgmtHeaderSize)
	assert.GreaterOrEqual(t, len(encoded), mtu-mgmtHeaderSize-2)
}
