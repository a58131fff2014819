package smkmongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lemmego/smklog"
)

// =====================================
// Error Conversion
// =====================================

// convertMongoError converts MongoDB errors to smklog errors
func convertMongoError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := smklog.AsError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return smklog.Error{
			Type:    smklog.ErrorTypeNotFound,
			Message: "document not found",
			Cause:   err,
		}
	case errors.Is(err, mongo.ErrNilDocument), errors.Is(err, mongo.ErrNilValue):
		return smklog.Error{
			Type:    smklog.ErrorTypeInvalidInput,
			Message: "nil document provided",
			Cause:   err,
		}
	case mongo.IsDuplicateKeyError(err):
		return smklog.Error{
			Type:    smklog.ErrorTypeDuplicate,
			Message: "duplicate key violation",
			Cause:   err,
		}
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err):
		return smklog.Error{
			Type:    smklog.ErrorTypeTimeout,
			Message: "operation timeout",
			Cause:   err,
		}
	case mongo.IsNetworkError(err), errors.Is(err, mongo.ErrClientDisconnected):
		return smklog.Error{
			Type:    smklog.ErrorTypeConnection,
			Message: "connection error",
			Cause:   err,
		}
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch {
		case cmdErr.HasErrorLabel("TransientTransactionError"), cmdErr.Code == 112: // WriteConflict
			return smklog.Error{
				Type:    smklog.ErrorTypeLocked,
				Message: "write conflict",
				Cause:   err,
			}
		case cmdErr.Code == 13, cmdErr.Code == 18: // Unauthorized, AuthenticationFailed
			return smklog.Error{
				Type:    smklog.ErrorTypeConnection,
				Message: "unauthorized access",
				Cause:   err,
			}
		case cmdErr.Code == 20, cmdErr.Code == 251, cmdErr.Code == 244: // IllegalOperation, NoSuchTransaction, TransactionTooOld
			return smklog.Error{
				Type:    smklog.ErrorTypeTransaction,
				Message: "transaction failed",
				Cause:   err,
			}
		case cmdErr.Code == 121: // DocumentValidationFailure
			return smklog.Error{
				Type:    smklog.ErrorTypeValidation,
				Message: "document validation failed",
				Cause:   err,
			}
		}
	}

	return smklog.Error{
		Type:    smklog.ErrorTypeInternal,
		Message: "database operation failed",
		Cause:   err,
	}
}
