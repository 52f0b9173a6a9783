package pdf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrPasswordRequired is returned when an encrypted PDF cannot be opened
// with the credentials at hand.
var ErrPasswordRequired = errors.New("pdf: password required")

// PasswordCredentials contains the passwords for a PDF file.
type PasswordCredentials struct {
	UserPassword  string `json:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty"`
}

func (c *PasswordCredentials) empty() bool {
	return c == nil || (c.UserPassword == "" && c.OwnerPassword == "")
}

// PasswordHandler decrypts password-protected PDFs into temporary files.
type PasswordHandler struct {
	allowPasswordPrompt bool
	defaultCredentials  *PasswordCredentials

	in  io.Reader
	out io.Writer
}

// NewPasswordHandler creates a password handler. With allowPrompt set,
// missing or wrong passwords are asked for on stdin.
func NewPasswordHandler(allowPrompt bool) *PasswordHandler {
	return &PasswordHandler{
		allowPasswordPrompt: allowPrompt,
		in:                  os.Stdin,
		out:                 os.Stderr,
	}
}

// WithPromptIO replaces the terminal used for password prompts.
func (h *PasswordHandler) WithPromptIO(in io.Reader, out io.Writer) *PasswordHandler {
	h.in, h.out = in, out
	return h
}

// SetDefaultCredentials sets credentials tried when a call supplies none.
func (h *PasswordHandler) SetDefaultCredentials(creds *PasswordCredentials) {
	h.defaultCredentials = creds
}

// IsEncrypted reports whether the PDF cannot be read without a password.
func (h *PasswordHandler) IsEncrypted(filename string) (bool, error) {
	if _, err := api.PageCountFile(filename); err != nil {
		if IsPasswordError(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to check PDF encryption status: %w", err)
	}
	return false, nil
}

// DecryptPDF writes a decrypted copy of filename to a temporary file and
// returns its path. Unencrypted files are returned unchanged. The caller
// removes the copy with CleanupTempFile.
func (h *PasswordHandler) DecryptPDF(filename string, creds *PasswordCredentials) (string, error) {
	encrypted, err := h.IsEncrypted(filename)
	if err != nil {
		return "", err
	}
	if !encrypted {
		return filename, nil
	}

	tempFileName, err := h.createTempFile()
	if err != nil {
		return "", err
	}

	config := h.createDecryptionConfig(creds)
	err = api.DecryptFile(filename, tempFileName, config)
	if err != nil && h.allowPasswordPrompt {
		err = h.tryDecryptWithPrompt(filename, tempFileName, config)
	}
	if err != nil {
		_ = os.Remove(tempFileName)
		return "", fmt.Errorf("%w: %w", ErrPasswordRequired, err)
	}
	return tempFileName, nil
}

// createDecryptionConfig creates a configuration with the provided credentials.
func (h *PasswordHandler) createDecryptionConfig(creds *PasswordCredentials) *model.Configuration {
	config := model.NewDefaultConfiguration()
	if creds.empty() {
		creds = h.defaultCredentials
	}
	if creds != nil {
		config.UserPW = creds.UserPassword
		config.OwnerPW = creds.OwnerPassword
	}
	return config
}

func (h *PasswordHandler) createTempFile() (string, error) {
	tempFile, err := os.CreateTemp("", "decrypted-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	_ = tempFile.Close()
	return tempFile.Name(), nil
}

func (h *PasswordHandler) tryDecryptWithPrompt(filename, tempFileName string, config *model.Configuration) error {
	_, _ = fmt.Fprintln(h.out, GetPasswordPrompt(filename))
	promptCreds, err := h.promptForPasswords()
	if err != nil {
		return fmt.Errorf("password prompting failed: %w", err)
	}
	config.UserPW = promptCreds.UserPassword
	config.OwnerPW = promptCreds.OwnerPassword
	return api.DecryptFile(filename, tempFileName, config)
}

// promptForPasswords asks for the user password and, if that is left
// empty, for the owner password.
func (h *PasswordHandler) promptForPasswords() (*PasswordCredentials, error) {
	reader := bufio.NewReader(h.in)
	creds := &PasswordCredentials{}

	_, _ = fmt.Fprint(h.out, "Enter user password (or press Enter to skip): ")
	userPW, err := readLine(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read user password: %w", err)
	}
	creds.UserPassword = userPW

	if userPW == "" {
		_, _ = fmt.Fprint(h.out, "Enter owner password (or press Enter to skip): ")
		ownerPW, err := readLine(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read owner password: %w", err)
		}
		creds.OwnerPassword = ownerPW
	}

	if creds.empty() {
		return nil, errors.New("no passwords provided")
	}
	return creds, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ValidateCredentials checks that creds decrypt the PDF.
func (h *PasswordHandler) ValidateCredentials(filename string, creds *PasswordCredentials) error {
	if creds.empty() {
		return errors.New("no credentials provided")
	}

	tempFile, err := h.createTempFile()
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tempFile) }()

	config := model.NewDefaultConfiguration()
	config.UserPW = creds.UserPassword
	config.OwnerPW = creds.OwnerPassword
	if err := api.DecryptFile(filename, tempFile, config); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}
	return nil
}

// CleanupTempFile removes a decrypted copy made by DecryptPDF. Other paths
// are left alone.
func (h *PasswordHandler) CleanupTempFile(filename string) error {
	if filename == "" {
		return nil
	}
	base := filepath.Base(filename)
	if strings.HasPrefix(base, "decrypted-") && strings.HasSuffix(base, ".pdf") {
		return os.Remove(filename)
	}
	return nil
}

// GetPasswordPrompt returns the message shown before asking for passwords.
func GetPasswordPrompt(filename string) string {
	caser := cases.Title(language.English)
	return fmt.Sprintf("The PDF file %q is password protected. %s",
		filename,
		caser.String("please provide the password"))
}

// IsPasswordError checks if an error is related to password/encryption issues.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPasswordRequired) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, keyword := range []string{"password", "encrypted", "decrypt", "authentication", "unauthorized", "invalid credentials"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}
