package protocol

import "github.com/savannahghi/idrclient/internal/idrerrors"

func errProtocolField(field string) error {
	return &idrerrors.ImproperlyConfiguredError{Field: field, Message: "must be set on ETLProtocol"}
}
