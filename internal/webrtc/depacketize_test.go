package webrtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepacketize_SingleNAL(t *testing.T) {
	d := NewH264Depacketizer()

	// Type 5 = IDR slice
	payload := []byte{0x65, 0x01, 0x02, 0x03}
	nalus := d.Depacketize(100, payload)

	require.Len(t, nalus, 1)
	assert.Equal(t, payload, nalus[0])
}

func TestDepacketize_STAPA(t *testing.T) {
	d := NewH264Depacketizer()

	sps := []byte{0x67, 0xAA, 0xBB}
	pps := []byte{0x68, 0xCC}

	payload := []byte{0x18}
	payload = append(payload, 0x00, 0x03)
	payload = append(payload, sps...)
	payload = append(payload, 0x00, 0x02)
	payload = append(payload, pps...)

	nalus := d.Depacketize(100, payload)
	require.Len(t, nalus, 2)
	assert.Equal(t, sps, nalus[0])
	assert.Equal(t, pps, nalus[1])
}

func TestDepacketize_STAPATruncated(t *testing.T) {
	d := NewH264Depacketizer()

	// second unit claims 9 bytes but only 1 follows
	payload := []byte{0x18, 0x00, 0x01, 0x67, 0x00, 0x09, 0x68}
	nalus := d.Depacketize(7, payload)
	require.Len(t, nalus, 1)
	assert.Equal(t, []byte{0x67}, nalus[0])
}

func TestDepacketize_STAPAIgnoresZeroSizeNALU(t *testing.T) {
	d := NewH264Depacketizer()
	assert.Empty(t, d.Depacketize(100, []byte{0x18, 0x00, 0x00}))
}

func TestDepacketize_FUA(t *testing.T) {
	d := NewH264Depacketizer()

	// FU indicator NRI=3|type=28, FU headers start/middle/end for type 5
	start := []byte{0x7C, 0x85, 0x01, 0x02}
	mid := []byte{0x7C, 0x05, 0x03, 0x04}
	end := []byte{0x7C, 0x45, 0x05, 0x06}

	assert.Nil(t, d.Depacketize(100, start))
	assert.Nil(t, d.Depacketize(101, mid))

	nalus := d.Depacketize(102, end)
	require.Len(t, nalus, 1)
	assert.Equal(t, []byte{0x65, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, nalus[0])
}

func TestDepacketize_FUASequenceWrap(t *testing.T) {
	d := NewH264Depacketizer()

	assert.Nil(t, d.Depacketize(65535, []byte{0x7C, 0x85, 0x01}))
	nalus := d.Depacketize(0, []byte{0x7C, 0x45, 0x02})
	require.Len(t, nalus, 1)
	assert.Equal(t, []byte{0x65, 0x01, 0x02}, nalus[0])
}

func TestDepacketize_FUADropsOnSequenceGap(t *testing.T) {
	d := NewH264Depacketizer()

	assert.Nil(t, d.Depacketize(100, []byte{0x7C, 0x85, 0x01, 0x02}))
	// 101 lost
	assert.Nil(t, d.Depacketize(102, []byte{0x7C, 0x05, 0x03, 0x04}))
	assert.Nil(t, d.Depacketize(103, []byte{0x7C, 0x45, 0x05, 0x06}))
}

func TestDepacketize_InstanceIsolation(t *testing.T) {
	d1 := NewH264Depacketizer()
	d2 := NewH264Depacketizer()

	d1.Depacketize(100, []byte{0x7C, 0x85, 0x01, 0x02})

	end := []byte{0x7C, 0x45, 0x03, 0x04}
	assert.Nil(t, d2.Depacketize(101, end), "orphan end fragment")
	assert.Len(t, d1.Depacketize(101, end), 1)
}

func TestDepacketize_EmptyPayload(t *testing.T) {
	d := NewH264Depacketizer()
	assert.Nil(t, d.Depacketize(0, nil))
	assert.Nil(t, d.Depacketize(0, []byte{}))
}
