package registration

const (
	TextNotStarted           = "Anda belum memulai bot. Gunakan perintah /start terlebih dahulu."
	TextAlreadyRegistered    = "Anda sudah terdaftar. Gunakan perintah /select_test untuk memilih jenis tes yang ingin Anda ambil."
	TextAlreadyInProgress    = "Anda sudah dalam proses registrasi. Silakan selesaikan terlebih dahulu."
	TextEmailConsentPrompt   = "Pendaftaran ini memerlukan email Anda. Apakah Anda bersedia memberikan email Anda?"
	TextChooseYesNo          = "Mohon pilih 'Ya' atau 'Tidak'."
	TextCancelled            = "Pendaftaran dibatalkan."
	TextEmailAlreadyProvided = "Anda sudah memberikan email. Lanjutkan ke langkah berikutnya."
	TextEmailPrompt          = "Silakan masukkan email Anda:"
	TextInvalidEmail         = "Email yang dimasukkan tidak valid. Silakan masukkan email yang benar."
	TextPhoneConsentPrompt   = "Apakah Anda bersedia nomor telepon Anda disimpan? Anda tetap bisa menggunakan bot tanpa memberikan nomor telepon."
	TextCompleted            = "Terima kasih telah mendaftar. Anda bisa memulai tes simulasi dengan menggunakan perintah /select_test."
	TextNoSession            = "Anda belum memulai proses pendaftaran. Gunakan perintah /register terlebih dahulu."
	TextBusy                 = "Pesan Anda sebelumnya masih diproses. Silakan coba lagi sebentar lagi."
)

// Keyboard is the reply affordance attached to a message.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	// KeyboardYesNo offers one-time "Tidak"/"Ya" buttons.
	KeyboardYesNo
	// KeyboardYesNoContact is KeyboardYesNo whose "Ya" button shares the user's contact.
	KeyboardYesNoContact
	KeyboardForceReply
	KeyboardRemove
)

// Reply is a message the engine wants delivered to the user.
type Reply struct {
	Text     string
	Keyboard Keyboard
}

// Replier delivers replies to the user currently being served.
type Replier interface {
	Reply(r Reply) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(Reply) error

func (f ReplierFunc) Reply(r Reply) error { return f(r) }

func completionReply(Outcome) Reply {
	return Reply{Text: TextCompleted, Keyboard: KeyboardRemove}
}
