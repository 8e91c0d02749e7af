package mcumgr

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageSlotStateDefaultsImageToZero(t *testing.T) {
	// a device entry omitting the "image" key must default to image 0.
	encoded, err := cbor.Marshal(map[string]any{
		"slot":    uint64(0),
		"version": "1.0.0",
		"active":  true,
	})
	require.NoError(t, err)

	var state ImageSlotState
	require.NoError(t, cbor.Unmarshal(encoded, &state))
	assert.Equal(t, uint32(0), state.Image)
	assert.Equal(t, "1.0.0", state.Version)
	assert.True(t, state.Active)
}

func TestSlotInfoResponseDecode(t *testing.T) {
	encoded, err := cbor.Marshal(map[string]any{
		"images": []any{
			map[string]any{
				"image": uint64(0),
				"slots": []any{
					map[string]any{"slot": uint64(0), "size": uint64(0x10000)},
					map[string]any{"slot": uint64(1), "size": uint64(0x10000), "upload_image_id": uint64(1)},
				},
				"max_image_size": uint64(0xF000),
			},
			map[string]any{
				"image": uint64(1),
				"slots": []any{},
			},
		},
	})
	require.NoError(t, err)

	var resp SlotInfoResponse
	require.NoError(t, cbor.Unmarshal(encoded, &resp))
	require.Len(t, resp.Images, 2)
	assert.Len(t, resp.Images[0].Slots, 2)
	require.NotNil(t, resp.Images[0].MaxImageSize)
	assert.EqualValues(t, 0xF000, *resp.Images[0].MaxImageSize)
	assert.Nil(t, resp.Images[0].Slots[0].UploadImageID)
	require.NotNil(t, resp.Images[0].Slots[1].UploadImageID)
	assert.EqualValues(t, 1, *resp.Images[0].Slots[1].UploadImageID)
	assert.Nil(t, resp.Images[1].MaxImageSize)
	assert.Empty(t, resp.Images[1].Slots)
}
