package sqldb

import (
	"context"

	"github.com/watcher-go/watcher-go/src/pkg/sqlexec"
)

// UserMovies 返回所有电影，按标题排序
func (a *Accessor) UserMovies(ctx context.Context) ([]sqlexec.Row, error) {
	return a.SelectAll(ctx, TableMovies, Order{Column: "title"})
}

// MovieDetails 返回一部电影的详细信息
func (a *Accessor) MovieDetails(ctx context.Context, m Match) (sqlexec.Row, error) {
	return a.SelectOne(ctx, TableMovies, m)
}

// SearchResults 返回一部电影的搜索结果
// 按评分降序；评分相同时 preferSmaller 为 true 则文件小的在前，否则文件大的在前。
func (a *Accessor) SearchResults(ctx context.Context, imdbid string, preferSmaller bool) ([]sqlexec.Row, error) {
	return a.SelectWhere(ctx, TableSearchResults, Match{Column: "imdbid", Value: imdbid},
		Order{Column: "score", Desc: true},
		Order{Column: "size", Desc: !preferSmaller},
	)
}

// SingleSearchResult 返回一条搜索结果
func (a *Accessor) SingleSearchResult(ctx context.Context, m Match) (sqlexec.Row, error) {
	return a.SelectOne(ctx, TableSearchResults, m)
}

// MarkedResults 返回一部电影被标记的结果 guid -> status
func (a *Accessor) MarkedResults(ctx context.Context, imdbid string) (map[string]string, error) {
	rows, err := a.SelectWhere(ctx, TableMarkedResults, Match{Column: "imdbid", Value: imdbid})
	if err != nil {
		return nil, err
	}
	marked := make(map[string]string, len(rows))
	for _, row := range rows {
		marked[row.String("guid")] = row.String("status")
	}
	return marked, nil
}

// RemoveMovie 删除电影及其搜索结果，保留标记结果
// 电影不存在时返回 ErrNoRows。
func (a *Accessor) RemoveMovie(ctx context.Context, imdbid string) error {
	exists, err := a.RowExistsByIdent(ctx, TableMovies, Ident{IMDBID: imdbid})
	if err != nil {
		return err
	}
	if !exists {
		return ErrNoRows
	}

	if _, err := a.Delete(ctx, TableMovies, Match{Column: "imdbid", Value: imdbid}); err != nil {
		return err
	}

	hasResults, err := a.RowExistsByIdent(ctx, TableSearchResults, Ident{IMDBID: imdbid})
	if err != nil {
		return err
	}
	if hasResults {
		if err := a.PurgeSearchResults(ctx, imdbid); err != nil {
			return err
		}
	}
	logger(TableMovies).WithField("imdbid", imdbid).Info("电影已删除")
	return nil
}

// PurgeSearchResults 删除一部电影的搜索结果，imdbid 为空时删除全部搜索结果
func (a *Accessor) PurgeSearchResults(ctx context.Context, imdbid string) error {
	if imdbid == "" {
		logger(TableSearchResults).Warn("清空全部搜索结果")
		_, err := a.exec.Execute(ctx, sqlexec.Statement(`DELETE FROM "`+TableSearchResults+`"`))
		return err
	}
	_, err := a.Delete(ctx, TableSearchResults, Match{Column: "imdbid", Value: imdbid})
	return err
}
