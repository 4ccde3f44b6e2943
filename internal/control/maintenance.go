package control

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shaiso/Autopilot/internal/domain"
)

// ClearChannels удаляет все каналы вместе с историей заявок по ним.
func (s *Service) ClearChannels(ctx context.Context) (int64, error) {
	if s.channels == nil {
		return 0, fmt.Errorf("%w: channels", ErrNotConfigured)
	}
	n, err := s.channels.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("channels cleared", "deleted", n)
	return n, nil
}

// ClearJoinRequests сбрасывает историю заявок. uuid.Nil — всех аккаунтов.
func (s *Service) ClearJoinRequests(ctx context.Context, accountID uuid.UUID) (int64, error) {
	if s.requests == nil {
		return 0, fmt.Errorf("%w: join requests", ErrNotConfigured)
	}

	var (
		n   int64
		err error
	)
	if accountID == uuid.Nil {
		n, err = s.requests.ClearAll(ctx)
	} else {
		n, err = s.requests.ClearForAccount(ctx, accountID)
	}
	if err != nil {
		return 0, err
	}
	s.logger.Info("join requests cleared", "deleted", n, "account_id", accountID)
	return n, nil
}

// ScanResult — итог поиска аккаунтов в папке.
type ScanResult struct {
	Root     string           `json:"root"`
	Found    []domain.Account `json:"found"`
	Added    int              `json:"added"`
	Replaced bool             `json:"replaced"`
}

// ScanAccounts ищет портативные установки в root и сохраняет их.
//
// Пустой root — папка из конфигурации. Если ничего не найдено, хранилище
// не меняется. replace == true заменяет все существующие аккаунты.
func (s *Service) ScanAccounts(ctx context.Context, root string, replace bool) (ScanResult, error) {
	if s.accounts == nil {
		return ScanResult{}, fmt.Errorf("%w: accounts", ErrNotConfigured)
	}
	if root == "" {
		root = s.accountsDir
	}
	if root == "" {
		return ScanResult{}, ErrNoAccountsDir
	}

	found, err := DiscoverAccounts(s.openDir(root), root, s.binary)
	if err != nil {
		return ScanResult{}, err
	}

	result := ScanResult{Root: root, Found: found}
	if len(found) == 0 {
		s.logger.Info("no accounts found", "root", root)
		return result, nil
	}

	added, err := s.accounts.Sync(ctx, found, replace)
	if err != nil {
		return ScanResult{}, err
	}
	result.Added = added
	result.Replaced = replace

	s.logger.Info("accounts scanned", "root", root, "found", len(found), "added", added, "replaced", replace)
	return result, nil
}

// DiscoverAccounts обходит подпапки первого уровня в fsys.
//
// Подпапка считается установкой, если в ней лежит binary или
// <имя binary без расширения>/binary. Номер — имя папки без символов,
// кроме цифр и '+'; если таких нет, берётся имя целиком. Пути в
// результате строятся от root. Порядок — по имени папки.
func DiscoverAccounts(fsys fs.FS, root, binary string) ([]domain.Account, error) {
	if binary == "" {
		binary = domain.DefaultTargetBinary
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read accounts directory %s: %w", root, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	nested := strings.TrimSuffix(binary, path.Ext(binary))
	candidates := []string{binary, path.Join(nested, binary)}

	var accounts []domain.Account
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		name := entry.Name()
		exe := ""
		for _, c := range candidates {
			ok, err := isFile(fsys, path.Join(name, c))
			if err != nil {
				return nil, err
			}
			if ok {
				exe = c
				break
			}
		}
		if exe == "" {
			continue
		}

		accounts = append(accounts, domain.Account{
			PhoneNumber: phoneFromFolder(name),
			FolderPath:  filepath.Join(root, name),
			ExePath:     filepath.Join(root, name, filepath.FromSlash(exe)),
			IsActive:    true,
		})
	}
	return accounts, nil
}

func isFile(fsys fs.FS, name string) (bool, error) {
	info, err := fs.Stat(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", name, err)
	}
	return !info.IsDir(), nil
}

func phoneFromFolder(name string) string {
	phone := strings.Map(func(r rune) rune {
		if r == '+' || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, name)
	if phone == "" {
		return name
	}
	return phone
}
