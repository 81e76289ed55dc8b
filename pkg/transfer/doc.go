// Package transfer — клиентская часть загрузки файла частями.
//
// Controller ведёт одну логическую загрузку: проверяет файл, открывает сессию,
// режет файл на части по Plan, гоняет их через пул воркеров с повторами и
// просит сервер собрать результат. Загрузку можно отменить (Cancel) и
// продолжить (Resume): повторно отправляются только части в статусах
// pending и failed.
package transfer
