package response

// ErrCode is a typed error code enum for consistent API and socket error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidAnswer  ErrCode = "INVALID_ANSWER"

	// ─── Assessment session ────────────────────────────────────────────
	ErrAssessmentNotFound ErrCode = "ASSESSMENT_NOT_FOUND"
	ErrAssessmentInvalid  ErrCode = "ASSESSMENT_INVALID"
	ErrLoadFailed         ErrCode = "LOAD_FAILED"
	ErrSessionAlreadyLive ErrCode = "SESSION_ALREADY_LIVE"
	ErrInvalidState       ErrCode = "INVALID_STATE"
	ErrSessionClosed      ErrCode = "SESSION_CLOSED"
	ErrSubmitDeclined     ErrCode = "SUBMIT_DECLINED"
	ErrSubmitSuperseded   ErrCode = "SUBMIT_SUPERSEDED"
	ErrSubmitInProgress   ErrCode = "SUBMIT_IN_PROGRESS"
	ErrSubmitFailed       ErrCode = "SUBMIT_FAILED"
	ErrAlreadySubmitted   ErrCode = "ALREADY_SUBMITTED"
	ErrGatewayUnavailable ErrCode = "GATEWAY_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrInvalidAnswer:
		return "Jawaban tidak valid untuk soal ini."

	// ─── Assessment session ────────────────────────────────────────────
	case ErrAssessmentNotFound:
		return "Asesmen tidak ditemukan."
	case ErrAssessmentInvalid:
		return "Data asesmen tidak valid."
	case ErrLoadFailed:
		return "Gagal memuat asesmen. Silakan coba lagi."
	case ErrSessionAlreadyLive:
		return "Asesmen ini sedang dikerjakan di perangkat lain."
	case ErrInvalidState:
		return "Tindakan tidak dapat dilakukan pada tahap ini."
	case ErrSessionClosed:
		return "Sesi asesmen telah ditutup."
	case ErrSubmitDeclined:
		return "Pengumpulan dibatalkan."
	case ErrSubmitSuperseded:
		return "Waktu habis. Jawaban Anda sudah dikumpulkan otomatis."
	case ErrSubmitInProgress:
		return "Jawaban Anda sedang dikumpulkan."
	case ErrAlreadySubmitted:
		return "Anda sudah mengumpulkan asesmen ini."
	case ErrSubmitFailed:
		return "Gagal mengumpulkan asesmen. Hubungi pengawas."
	case ErrGatewayUnavailable:
		return "Server sekolah tidak dapat dihubungi."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
