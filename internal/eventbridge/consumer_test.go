package eventbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileops.io/notifyd/internal/core"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
)

func TestDecodeEvent(t *testing.T) {
	body := []byte(`{
		"userId": "u1",
		"tenantId": "t1",
		"title": "File uploaded",
		"data": {"fileName": "report.pdf"},
		"priority": "high"
	}`)

	in, err := decodeEvent("file.uploaded", body)
	require.NoError(t, err)
	assert.Equal(t, "u1", in.UserID)
	assert.Equal(t, "t1", in.TenantID)
	assert.Equal(t, core.TypeFileUploaded, in.Type)
	assert.Equal(t, core.PriorityHigh, in.Priority)
	assert.Equal(t, "report.pdf", in.Data["fileName"])
}

func TestDecodeEventRoutingKeys(t *testing.T) {
	cases := map[string]core.Type{
		"file.uploaded":       core.TypeFileUploaded,
		"file.shared":         core.TypeFileShared,
		"processing.complete": core.TypeProcessingComplete,
		"processing.failed":   core.TypeProcessingFailed,
		"storage.quota":       core.TypeStorageQuota,
		"security.alert":      core.TypeSecurityAlert,
		"system.alert":        core.TypeSystemAlert,
	}
	for key, want := range cases {
		in, err := decodeEvent(key, []byte(`{"userId":"u1"}`))
		require.NoError(t, err, key)
		assert.Equal(t, want, in.Type)
	}
}

func TestDecodeEventRejectsBadInput(t *testing.T) {
	_, err := decodeEvent("user.logged_in", []byte(`{"userId":"u1"}`))
	assert.Error(t, err)

	_, err = decodeEvent("file.uploaded", []byte(`not json`))
	assert.Error(t, err)

	_, err = decodeEvent("file.uploaded", []byte(`{"title":"no user"}`))
	assert.Error(t, err)
}

func TestIsRejection(t *testing.T) {
	assert.True(t, isRejection(apperrors.Forbidden(apperrors.CodeNotificationsDisabled, "off")))
	assert.True(t, isRejection(apperrors.BadRequest(apperrors.CodeMissingField, "userId")))
	assert.False(t, isRejection(apperrors.Internal(apperrors.CodeInternal, "db down")))
	assert.False(t, isRejection(assert.AnError))
}
